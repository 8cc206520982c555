/*
 * Copyright (c) 2026. CFC Developers. All rights reserved.
 *
 * SPDX-License-Identifier: Apache-2.0
 */

package tracer

import (
	"fmt"
	"os"
	"time"
	"unsafe"

	"github.com/containerd/log"
	"golang.org/x/sys/unix"

	"github.com/maxmcd/cfc-ptrace/pkg/errdefs"
	"github.com/maxmcd/cfc-ptrace/pkg/store"
	"github.com/maxmcd/cfc-ptrace/pkg/vfs"
)

// errnoFor folds a store-level failure into the negative errno the child
// will see.
func errnoFor(err error) int64 {
	switch {
	case err == nil:
		return 0
	case errdefs.IsNotFound(err):
		return -int64(unix.ENOENT)
	case errdefs.IsAlreadyExists(err):
		return -int64(unix.EEXIST)
	default:
		return -int64(unix.EIO)
	}
}

// remoteErrno splits remote failures into fatal transport loss and
// child-visible errnos.
func (t *Tracer) remoteErrno(err error) (int64, error) {
	if err == nil {
		return 0, nil
	}
	if errdefs.IsConnectionLost(err) {
		return 0, err
	}
	return errnoFor(err), nil
}

func openFlagsFrom(flags int) vfs.OpenFlags {
	acc := flags & unix.O_ACCMODE
	return vfs.OpenFlags{
		Read:     acc == unix.O_RDONLY || acc == unix.O_RDWR,
		Write:    acc == unix.O_WRONLY || acc == unix.O_RDWR,
		Append:   flags&unix.O_APPEND != 0,
		Truncate: flags&unix.O_TRUNC != 0,
		Create:   flags&unix.O_CREAT != 0,
	}
}

func (t *Tracer) onEnter() error {
	var regs unix.PtraceRegs
	if err := t.proxy.GetRegs(&regs); err != nil {
		return err
	}
	nr, args := Args(&regs)

	switch nr {
	case unix.SYS_OPENAT:
		return t.enterOpenat(&regs, args)
	case unix.SYS_READ:
		return t.enterRead(&regs, args, -1)
	case unix.SYS_PREAD64:
		return t.enterRead(&regs, args, int64(args[3]))
	case unix.SYS_WRITE:
		return t.enterWrite(&regs, args, -1)
	case unix.SYS_PWRITE64:
		return t.enterWrite(&regs, args, int64(args[3]))
	case unix.SYS_CLOSE:
		return t.enterClose(&regs, args)
	case unix.SYS_LSEEK:
		return t.enterLseek(&regs, args)
	case unix.SYS_FSTAT:
		return t.enterFstat(&regs, args)
	case unix.SYS_NEWFSTATAT:
		return t.enterNewfstatat(&regs, args)
	case unix.SYS_FTRUNCATE:
		return t.enterFtruncate(&regs, args)
	case unix.SYS_UNLINKAT:
		return t.enterUnlinkat(&regs, args)
	case unix.SYS_RENAMEAT, unix.SYS_RENAMEAT2:
		return t.enterRenameat(&regs, args)
	case unix.SYS_CHDIR:
		return t.enterChdir(args)
	case unix.SYS_FCHDIR:
		t.chdirExit = func(rv int64) {
			if rv == 0 {
				t.refreshCwd()
			}
		}
		return nil
	default:
		return nil
	}
}

// lookupVirtualFd classifies an fd argument. A descriptor inside the
// synthetic range that is no longer (or never was) open gets -EBADF; a
// real kernel fd passes through.
func (t *Tracer) lookupVirtualFd(regs *unix.PtraceRegs, nr uint64, fd int) (*vfs.Entry, bool, error) {
	if e := t.fds.Lookup(fd); e != nil {
		return e, true, nil
	}
	if t.fds.InRange(fd) {
		return nil, true, t.virtualize(regs, nr, func() (int64, error) {
			return -int64(unix.EBADF), nil
		})
	}
	return nil, false, nil
}

// readPath extracts a path argument from the child. ok=false means the
// address was unreadable and the syscall should pass through for the
// kernel to fault on.
func (t *Tracer) readPath(addr uintptr) (string, bool) {
	path, err := t.proxy.ReadCString(addr)
	if err != nil {
		log.L.WithError(err).Debug("unreadable path argument, passing through")
		return "", false
	}
	return path, true
}

func (t *Tracer) enterOpenat(regs *unix.PtraceRegs, args [6]uint64) error {
	dirfd := int(int32(args[0]))
	path, ok := t.readPath(uintptr(args[1]))
	if !ok {
		return nil
	}
	flags := int(int32(args[2]))

	// Relative lookups against a real directory fd never target the
	// virtual namespace.
	if dirfd != unix.AT_FDCWD && path != "" && path[0] != '/' {
		return nil
	}
	resolved := t.cls.Resolve(path)
	if !t.cls.IsVirtual(resolved) {
		return nil
	}
	of := openFlagsFrom(flags)

	return t.virtualize(regs, unix.SYS_OPENAT, func() (int64, error) {
		if !of.Create {
			// Without O_CREAT the file must already exist; creation
			// otherwise happens lazily on first write.
			_, err := t.client.Stat(resolved)
			if rv, fatal := t.remoteErrno(err); fatal != nil || rv != 0 {
				return rv, fatal
			}
		}
		if of.Truncate {
			if err := t.client.Truncate(resolved, 0); err != nil {
				if errdefs.IsConnectionLost(err) {
					return 0, err
				}
				// Nothing to truncate before the first write.
				if !errdefs.IsNotFound(err) {
					return errnoFor(err), nil
				}
			}
		}
		fd := t.fds.Allocate(resolved, of)
		log.L.Debugf("openat %s -> virtual fd %d", resolved, fd)
		return int64(fd), nil
	})
}

// enterRead handles read(2) and pread64(2); at < 0 means cursor I/O.
func (t *Tracer) enterRead(regs *unix.PtraceRegs, args [6]uint64, at int64) error {
	fd := int(int32(args[0]))
	e, virtual, err := t.lookupVirtualFd(regs, unix.SYS_READ, fd)
	if e == nil || !virtual || err != nil {
		return err
	}
	bufAddr := uintptr(args[1])
	count := int64(args[2])

	return t.virtualize(regs, unix.SYS_READ, func() (int64, error) {
		if !e.Flags.Read {
			return -int64(unix.EBADF), nil
		}
		offset := at
		if offset < 0 {
			offset = e.Cursor
		}
		data, err := t.client.Read(e.Path, offset, count)
		if rv, fatal := t.remoteErrno(err); fatal != nil || rv != 0 {
			return rv, fatal
		}
		if len(data) == 0 {
			return 0, nil
		}
		n, err := t.proxy.WriteBuffer(bufAddr, data)
		if err != nil {
			return -int64(unix.EFAULT), nil
		}
		if at < 0 {
			e.Cursor = offset + int64(n)
		}
		return int64(n), nil
	})
}

// enterWrite handles write(2) and pwrite64(2); at < 0 means cursor I/O.
func (t *Tracer) enterWrite(regs *unix.PtraceRegs, args [6]uint64, at int64) error {
	fd := int(int32(args[0]))
	e, virtual, err := t.lookupVirtualFd(regs, unix.SYS_WRITE, fd)
	if e == nil || !virtual || err != nil {
		return err
	}
	bufAddr := uintptr(args[1])
	count := int(args[2])

	return t.virtualize(regs, unix.SYS_WRITE, func() (int64, error) {
		if !e.Flags.Write {
			return -int64(unix.EBADF), nil
		}
		data, err := t.proxy.ReadBuffer(bufAddr, count)
		if err != nil {
			return -int64(unix.EFAULT), nil
		}
		offset := at
		if offset < 0 {
			offset = e.Cursor
			if e.Flags.Append {
				fi, err := t.client.Stat(e.Path)
				switch {
				case err == nil:
					offset = fi.FileSize
				case errdefs.IsConnectionLost(err):
					return 0, err
				case !errdefs.IsNotFound(err):
					return errnoFor(err), nil
				}
			}
		}
		n, err := t.client.Write(e.Path, offset, data)
		if rv, fatal := t.remoteErrno(err); fatal != nil || rv != 0 {
			return rv, fatal
		}
		if at < 0 {
			e.Cursor = offset + n
		}
		return n, nil
	})
}

func (t *Tracer) enterClose(regs *unix.PtraceRegs, args [6]uint64) error {
	fd := int(int32(args[0]))
	e, virtual, err := t.lookupVirtualFd(regs, unix.SYS_CLOSE, fd)
	if e == nil || !virtual || err != nil {
		return err
	}
	return t.virtualize(regs, unix.SYS_CLOSE, func() (int64, error) {
		if err := t.fds.Release(fd); err != nil {
			return -int64(unix.EBADF), nil
		}
		return 0, nil
	})
}

func (t *Tracer) enterLseek(regs *unix.PtraceRegs, args [6]uint64) error {
	fd := int(int32(args[0]))
	e, virtual, err := t.lookupVirtualFd(regs, unix.SYS_LSEEK, fd)
	if e == nil || !virtual || err != nil {
		return err
	}
	offset := int64(args[1])
	whence := int(int32(args[2]))

	return t.virtualize(regs, unix.SYS_LSEEK, func() (int64, error) {
		var base int64
		switch whence {
		case unix.SEEK_SET:
			base = 0
		case unix.SEEK_CUR:
			base = e.Cursor
		case unix.SEEK_END:
			fi, err := t.client.Stat(e.Path)
			switch {
			case err == nil:
				base = fi.FileSize
			case errdefs.IsConnectionLost(err):
				return 0, err
			case errdefs.IsNotFound(err):
				base = 0
			default:
				return errnoFor(err), nil
			}
		default:
			return -int64(unix.EINVAL), nil
		}
		pos := base + offset
		if pos < 0 {
			return -int64(unix.EINVAL), nil
		}
		e.Cursor = pos
		return pos, nil
	})
}

func (t *Tracer) enterFstat(regs *unix.PtraceRegs, args [6]uint64) error {
	fd := int(int32(args[0]))
	e, virtual, err := t.lookupVirtualFd(regs, unix.SYS_FSTAT, fd)
	if e == nil || !virtual || err != nil {
		return err
	}
	statAddr := uintptr(args[1])
	return t.virtualize(regs, unix.SYS_FSTAT, func() (int64, error) {
		return t.fabricateStat(e.Path, statAddr)
	})
}

func (t *Tracer) enterNewfstatat(regs *unix.PtraceRegs, args [6]uint64) error {
	dirfd := int(int32(args[0]))
	path, ok := t.readPath(uintptr(args[1]))
	if !ok {
		return nil
	}
	if dirfd != unix.AT_FDCWD && path != "" && path[0] != '/' {
		return nil
	}
	resolved := t.cls.Resolve(path)
	if !t.cls.IsVirtual(resolved) {
		return nil
	}
	statAddr := uintptr(args[2])
	return t.virtualize(regs, unix.SYS_NEWFSTATAT, func() (int64, error) {
		return t.fabricateStat(resolved, statAddr)
	})
}

func (t *Tracer) enterFtruncate(regs *unix.PtraceRegs, args [6]uint64) error {
	fd := int(int32(args[0]))
	e, virtual, err := t.lookupVirtualFd(regs, unix.SYS_FTRUNCATE, fd)
	if e == nil || !virtual || err != nil {
		return err
	}
	length := int64(args[1])
	return t.virtualize(regs, unix.SYS_FTRUNCATE, func() (int64, error) {
		if !e.Flags.Write {
			return -int64(unix.EINVAL), nil
		}
		if length < 0 {
			return -int64(unix.EINVAL), nil
		}
		err := t.client.Truncate(e.Path, length)
		if err != nil && errdefs.IsNotFound(err) {
			// The file materializes on first write; an early truncate
			// of nothing is a no-op.
			return 0, nil
		}
		return t.remoteErrno(err)
	})
}

func (t *Tracer) enterUnlinkat(regs *unix.PtraceRegs, args [6]uint64) error {
	dirfd := int(int32(args[0]))
	path, ok := t.readPath(uintptr(args[1]))
	if !ok {
		return nil
	}
	flags := int(int32(args[2]))
	if dirfd != unix.AT_FDCWD && path != "" && path[0] != '/' {
		return nil
	}
	resolved := t.cls.Resolve(path)
	if !t.cls.IsVirtual(resolved) {
		return nil
	}
	return t.virtualize(regs, unix.SYS_UNLINKAT, func() (int64, error) {
		if flags&unix.AT_REMOVEDIR != 0 {
			// The virtual namespace has no directories.
			return -int64(unix.ENOTDIR), nil
		}
		return t.remoteErrno(t.client.Unlink(resolved))
	})
}

func (t *Tracer) enterRenameat(regs *unix.PtraceRegs, args [6]uint64) error {
	oldDirfd := int(int32(args[0]))
	oldPath, ok := t.readPath(uintptr(args[1]))
	if !ok {
		return nil
	}
	newDirfd := int(int32(args[2]))
	newPath, ok := t.readPath(uintptr(args[3]))
	if !ok {
		return nil
	}
	if (oldDirfd != unix.AT_FDCWD && oldPath != "" && oldPath[0] != '/') ||
		(newDirfd != unix.AT_FDCWD && newPath != "" && newPath[0] != '/') {
		return nil
	}
	oldResolved := t.cls.Resolve(oldPath)
	newResolved := t.cls.Resolve(newPath)
	oldVirtual := t.cls.IsVirtual(oldResolved)
	newVirtual := t.cls.IsVirtual(newResolved)
	if !oldVirtual && !newVirtual {
		return nil
	}
	return t.virtualize(regs, unix.SYS_RENAMEAT2, func() (int64, error) {
		if oldVirtual != newVirtual {
			// No moves across the virtual boundary.
			return -int64(unix.EXDEV), nil
		}
		return t.remoteErrno(t.client.Rename(oldResolved, newResolved))
	})
}

func (t *Tracer) enterChdir(args [6]uint64) error {
	path, ok := t.readPath(uintptr(args[0]))
	if !ok {
		return nil
	}
	resolved := t.cls.Resolve(path)
	t.chdirExit = func(rv int64) {
		if rv == 0 {
			t.cls.SetCwd(resolved)
			log.L.Debugf("child cwd now %s", resolved)
		}
	}
	return nil
}

func (t *Tracer) refreshCwd() {
	cwd, err := os.Readlink(fmt.Sprintf("/proc/%d/cwd", t.pid))
	if err != nil {
		log.L.WithError(err).Warn("refresh child cwd")
		return
	}
	t.cls.SetCwd(cwd)
}

// fabricateStat writes a synthetic regular-file Stat_t for path into the
// child at addr and returns the syscall result.
func (t *Tracer) fabricateStat(path string, addr uintptr) (int64, error) {
	fi, err := t.client.Stat(path)
	if rv, fatal := t.remoteErrno(err); fatal != nil || rv != 0 {
		return rv, fatal
	}
	st := statFromFileInfo(fi)
	buf := unsafe.Slice((*byte)(unsafe.Pointer(&st)), int(unsafe.Sizeof(st)))
	if _, err := t.proxy.WriteBuffer(addr, buf); err != nil {
		return -int64(unix.EFAULT), nil
	}
	return 0, nil
}

func statFromFileInfo(fi *store.FileInfo) unix.Stat_t {
	var st unix.Stat_t
	st.Ino = uint64(fi.FileID)
	st.Nlink = 1
	st.Mode = unix.S_IFREG | 0644
	st.Uid = uint32(os.Getuid())
	st.Gid = uint32(os.Getgid())
	st.Size = fi.FileSize
	st.Blksize = 4096
	st.Blocks = (fi.FileSize + 511) / 512
	if ts, err := time.Parse(time.RFC3339, fi.ModifiedAt); err == nil {
		st.Mtim = unix.NsecToTimespec(ts.UnixNano())
		st.Ctim = st.Mtim
	}
	if ts, err := time.Parse(time.RFC3339, fi.CreatedAt); err == nil {
		st.Atim = unix.NsecToTimespec(ts.UnixNano())
	}
	return st
}
