/*
 * Copyright (c) 2026. CFC Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package tracer

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

const wordSize = 8

// Proxy moves values across the process boundary: it reads strings and
// buffers out of the stopped child and implants buffers and register
// values back in, without any library call running in the child. All
// calls require the child to be in a ptrace stop.
type Proxy struct {
	pid int
}

func NewProxy(pid int) *Proxy {
	return &Proxy{pid: pid}
}

// GetRegs snapshots the child's register file.
func (p *Proxy) GetRegs(regs *unix.PtraceRegs) error {
	if err := unix.PtraceGetRegs(p.pid, regs); err != nil {
		return errors.Wrapf(err, "read registers of %d", p.pid)
	}
	return nil
}

// SetRegs writes the register file back.
func (p *Proxy) SetRegs(regs *unix.PtraceRegs) error {
	if err := unix.PtraceSetRegs(p.pid, regs); err != nil {
		return errors.Wrapf(err, "write registers of %d", p.pid)
	}
	return nil
}

// ReadCString reads a NUL-terminated string from the child, one word at
// a time. Fails when the address range is unreadable.
func (p *Proxy) ReadCString(addr uintptr) (string, error) {
	var out []byte
	word := make([]byte, wordSize)
	for {
		n, err := unix.PtracePeekData(p.pid, addr, word)
		if err != nil {
			return "", errors.Wrapf(err, "read string at %#x in %d", addr, p.pid)
		}
		for i := 0; i < n; i++ {
			if word[i] == 0 {
				return string(out), nil
			}
			out = append(out, word[i])
		}
		addr += uintptr(n)
	}
}

// ReadBuffer copies n bytes out of the child's address space.
func (p *Proxy) ReadBuffer(addr uintptr, n int) ([]byte, error) {
	if n == 0 {
		return []byte{}, nil
	}
	buf := make([]byte, n)
	if _, err := unix.PtracePeekData(p.pid, addr, buf); err != nil {
		return nil, errors.Wrapf(err, "read %d bytes at %#x in %d", n, addr, p.pid)
	}
	return buf, nil
}

// WriteBuffer copies data into the child's address space. The write may
// be partial when the destination crosses an unmapped page; the byte
// count actually placed is returned and is what the child gets told.
func (p *Proxy) WriteBuffer(addr uintptr, data []byte) (int, error) {
	written := 0
	for written < len(data) {
		// Stay within one page per poke so a fault past a mapping
		// boundary loses only the tail.
		n := len(data) - written
		pageRemain := pageSize - int((addr+uintptr(written))%pageSize)
		if n > pageRemain {
			n = pageRemain
		}
		_, err := unix.PtracePokeData(p.pid, addr+uintptr(written), data[written:written+n])
		if err != nil {
			if written > 0 {
				return written, nil
			}
			return 0, errors.Wrapf(err, "write %d bytes at %#x in %d", len(data), addr, p.pid)
		}
		written += n
	}
	return written, nil
}

const pageSize = 4096

// Args returns the syscall number and arguments per the System V AMD64
// syscall convention: number in orig_rax, arguments in rdi, rsi, rdx,
// r10, r8, r9.
func Args(regs *unix.PtraceRegs) (nr uint64, args [6]uint64) {
	return regs.Orig_rax, [6]uint64{regs.Rdi, regs.Rsi, regs.Rdx, regs.R10, regs.R8, regs.R9}
}

// ReturnValue reads the syscall result register.
func ReturnValue(regs *unix.PtraceRegs) int64 {
	return int64(regs.Rax)
}

// SetReturnValue overwrites the syscall result the child will observe.
func SetReturnValue(regs *unix.PtraceRegs, rv int64) {
	regs.Rax = uint64(rv)
}

// RedirectToNoop rewrites the syscall number so the kernel runs a
// harmless getpid instead of the intercepted call. A syscall cannot be
// cancelled once entered; some syscall has to complete, and its result
// register is overwritten on the exit stop.
func RedirectToNoop(regs *unix.PtraceRegs) {
	regs.Orig_rax = unix.SYS_GETPID
}
