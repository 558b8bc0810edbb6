//go:build linux

package wlorient

import (
	"fmt"
	"sync"

	"golang.org/x/sys/unix"
)

// Control message buffers, sized for up to 4 file descriptors
var controlBufferPool = sync.Pool{
	New: func() interface{} {
		b := make([]byte, unix.CmsgSpace(4*4))
		return &b
	},
}

// recvmsg reads into buf. None of the events this client handles carry
// file descriptors, so any received with the message are closed.
func (d *Display) recvmsg(buf []byte) (int, error) {
	oobp := controlBufferPool.Get().(*[]byte)
	defer controlBufferPool.Put(oobp)
	oob := *oobp

	n, oobn, _, _, err := d.conn.ReadMsgUnix(buf, oob)
	if err != nil {
		return 0, err
	}
	if oobn == 0 {
		return n, nil
	}

	scms, err := unix.ParseSocketControlMessage(oob[:oobn])
	if err != nil {
		return n, fmt.Errorf("parse control message: %w", err)
	}
	for i := range scms {
		if scms[i].Header.Type != unix.SCM_RIGHTS {
			continue
		}
		fds, err := unix.ParseUnixRights(&scms[i])
		if err != nil {
			return n, fmt.Errorf("parse unix rights: %w", err)
		}
		for _, fd := range fds {
			d.logger.Debug().Int("fd", fd).Msg("closing unexpected file descriptor")
			_ = unix.Close(fd)
		}
	}
	return n, nil
}

// sendmsgWithFDs sends a message potentially containing file descriptors
func (d *Display) sendmsgWithFDs(buf []byte, fds []int) error {
	d.sendMu.Lock()
	defer d.sendMu.Unlock()

	if len(fds) == 0 {
		_, err := d.conn.Write(buf)
		return err
	}

	oob := unix.UnixRights(fds...)
	_, _, err := d.conn.WriteMsgUnix(buf, oob, nil)
	return err
}
