/*
 * Copyright (c) 2026. CFC Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

// Package tracer forks a child under ptrace and mediates its filesystem
// syscalls: paths under the virtual root are redirected to the remote
// chunked store, everything else passes through to the kernel untouched.
package tracer

import (
	"fmt"
	"os"
	"os/exec"
	"runtime"
	"syscall"

	"github.com/containerd/log"
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"

	"github.com/maxmcd/cfc-ptrace/pkg/errdefs"
	"github.com/maxmcd/cfc-ptrace/pkg/remote"
	"github.com/maxmcd/cfc-ptrace/pkg/vfs"
)

// sysGood marks a syscall-stop when PTRACE_O_TRACESYSGOOD is set.
const sysGood = 0x80

// pendingCall is the bridge between the entry and exit halves of one
// virtualized syscall: the action runs at the exit stop and yields the
// return value to implant.
type pendingCall struct {
	nr     uint64
	action func() (int64, error)
}

// Tracer owns one traced child for the duration of a trace.
type Tracer struct {
	client *remote.Client
	root   string

	pid   int
	proxy *Proxy
	cls   *vfs.Classifier
	fds   *vfs.FdTable

	// insyscall tracks entry/exit parity of syscall-stops.
	insyscall bool
	pending   *pendingCall
	// chdirExit runs at the exit stop of a passthrough chdir/fchdir to
	// keep the cwd snapshot honest.
	chdirExit func(rv int64)
}

// New builds a tracer around an established storage connection.
// virtualRoot must be absolute.
func New(client *remote.Client, virtualRoot string) (*Tracer, error) {
	if virtualRoot == "" {
		return nil, errors.Wrap(errdefs.ErrInvalidArgument, "empty virtual root")
	}
	return &Tracer{client: client, root: virtualRoot}, nil
}

// Run executes path under trace and mediates its syscalls until it
// terminates. The returned exit code mirrors the child: its own code on
// normal exit, 128+signo when a signal killed it.
func (t *Tracer) Run(path string, args []string, env []string) (int, error) {
	// Every ptrace request must come from the thread that attached.
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	cmd := exec.Command(path, args...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if env != nil {
		cmd.Env = env
	}
	cmd.SysProcAttr = &syscall.SysProcAttr{Ptrace: true}
	if err := cmd.Start(); err != nil {
		return 0, errors.Wrapf(err, "start %s", path)
	}
	t.pid = cmd.Process.Pid
	t.proxy = NewProxy(t.pid)
	t.fds = vfs.NewFdTable()

	// First stop: the SIGTRAP delivered by execve under TRACEME.
	var ws unix.WaitStatus
	if _, err := unix.Wait4(t.pid, &ws, 0, nil); err != nil {
		return 0, errors.Wrap(err, "wait for initial stop")
	}
	if ws.Exited() {
		return ws.ExitStatus(), nil
	}
	if err := unix.PtraceSetOptions(t.pid, unix.PTRACE_O_TRACESYSGOOD|unix.PTRACE_O_EXITKILL); err != nil {
		t.kill()
		return 0, errors.Wrap(err, "set trace options")
	}

	cwd, err := os.Readlink(fmt.Sprintf("/proc/%d/cwd", t.pid))
	if err != nil {
		t.kill()
		return 0, errors.Wrap(err, "snapshot child cwd")
	}
	t.cls = vfs.NewClassifier(t.root, cwd)
	log.L.Debugf("tracing pid %d, virtual root %s, cwd %s", t.pid, t.root, cwd)

	return t.loop()
}

func (t *Tracer) loop() (int, error) {
	var inject unix.Signal
	for {
		if err := unix.PtraceSyscall(t.pid, int(inject)); err != nil {
			t.kill()
			return 0, errors.Wrap(err, "resume child")
		}
		inject = 0

		var ws unix.WaitStatus
		if _, err := unix.Wait4(t.pid, &ws, 0, nil); err != nil {
			t.kill()
			return 0, errors.Wrap(err, "wait for child")
		}

		switch {
		case ws.Exited():
			return ws.ExitStatus(), nil
		case ws.Signaled():
			return 128 + int(ws.Signal()), nil
		case ws.Stopped():
			sig := ws.StopSignal()
			if sig == unix.SIGTRAP|sysGood {
				if err := t.onSyscallStop(); err != nil {
					t.kill()
					return 0, err
				}
			} else {
				// A plain signal stop. Re-inject on resume; fatal
				// dispositions terminate the child and surface above as
				// a signaled status.
				log.L.Debugf("pid %d stopped by signal %s", t.pid, sig)
				inject = sig
			}
		}
	}
}

func (t *Tracer) onSyscallStop() error {
	t.insyscall = !t.insyscall
	if t.insyscall {
		return t.onEnter()
	}
	return t.onExit()
}

func (t *Tracer) onExit() error {
	if t.chdirExit != nil {
		f := t.chdirExit
		t.chdirExit = nil
		var regs unix.PtraceRegs
		if err := t.proxy.GetRegs(&regs); err != nil {
			return err
		}
		f(ReturnValue(&regs))
	}
	if t.pending == nil {
		return nil
	}
	call := t.pending
	t.pending = nil

	rv, err := call.action()
	if err != nil {
		// Only transport loss escapes the action; store-level failures
		// were already folded into rv.
		return err
	}

	var regs unix.PtraceRegs
	if err := t.proxy.GetRegs(&regs); err != nil {
		return err
	}
	SetReturnValue(&regs, rv)
	if err := t.proxy.SetRegs(&regs); err != nil {
		return err
	}
	log.L.Debugf("fabricated rv %d for syscall %d", rv, call.nr)
	return nil
}

// virtualize neutralizes the syscall sitting at its entry stop and
// schedules action for the exit stop.
func (t *Tracer) virtualize(regs *unix.PtraceRegs, nr uint64, action func() (int64, error)) error {
	RedirectToNoop(regs)
	if err := t.proxy.SetRegs(regs); err != nil {
		return err
	}
	t.pending = &pendingCall{nr: nr, action: action}
	return nil
}

func (t *Tracer) kill() {
	_ = unix.Kill(t.pid, unix.SIGKILL)
	_, _ = unix.Wait4(t.pid, nil, 0, nil)
}
