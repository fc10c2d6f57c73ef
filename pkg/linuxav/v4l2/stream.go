//go:build linux

package v4l2

import (
	"errors"
	"time"
	"unsafe"

	"golang.org/x/sys/unix"
)

// bufferCount is the number of mmap buffers requested when streaming starts.
const bufferCount = 4

// RawFrame is one captured frame copied out of the driver's buffer ring.
type RawFrame struct {
	Data     []byte
	Sequence uint32
	// Timestamp is the driver's capture time, usually CLOCK_MONOTONIC.
	Timestamp time.Duration
}

// Start maps the capture buffers and starts streaming.
func (c *Camera) Start() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateOpened {
		return stateError("start", c.state)
	}
	if err := c.mapBuffers(); err != nil {
		c.releaseBuffers()
		return err
	}

	typ := uint32(v4l2BufTypeVideoCapture)
	if err := ioctl(c.fd, vidiocStreamon, unsafe.Pointer(&typ)); err != nil {
		c.releaseBuffers()
		return deviceError("VIDIOC_STREAMON", c.path, err)
	}

	c.state = StateStreaming
	return nil
}

func (c *Camera) mapBuffers() error {
	rb := v4l2Requestbuffers{
		count:  bufferCount,
		typ:    v4l2BufTypeVideoCapture,
		memory: v4l2MemoryMmap,
	}
	if err := ioctl(c.fd, vidiocReqbufs, unsafe.Pointer(&rb)); err != nil {
		return deviceError("VIDIOC_REQBUFS", c.path, err)
	}
	if rb.count == 0 {
		return deviceError("VIDIOC_REQBUFS", c.path, unix.ENOMEM)
	}

	c.bufs = make([][]byte, 0, rb.count)
	for i := uint32(0); i < rb.count; i++ {
		qb := v4l2Buffer{
			index:  i,
			typ:    v4l2BufTypeVideoCapture,
			memory: v4l2MemoryMmap,
		}
		if err := ioctl(c.fd, vidiocQuerybuf, unsafe.Pointer(&qb)); err != nil {
			return deviceError("VIDIOC_QUERYBUF", c.path, err)
		}

		buf, err := unix.Mmap(c.fd, qb.offset(), int(qb.length), unix.PROT_READ, unix.MAP_SHARED)
		if err != nil {
			return deviceError("mmap", c.path, err)
		}
		c.bufs = append(c.bufs, buf)

		if err := ioctl(c.fd, vidiocQbuf, unsafe.Pointer(&qb)); err != nil {
			return deviceError("VIDIOC_QBUF", c.path, err)
		}
	}
	return nil
}

// releaseBuffers unmaps the ring and frees the driver's buffers.
func (c *Camera) releaseBuffers() {
	for _, buf := range c.bufs {
		_ = unix.Munmap(buf)
	}
	c.bufs = nil

	rb := v4l2Requestbuffers{
		typ:    v4l2BufTypeVideoCapture,
		memory: v4l2MemoryMmap,
	}
	_ = ioctl(c.fd, vidiocReqbufs, unsafe.Pointer(&rb))
}

// Stop ends streaming and releases the buffers.
func (c *Camera) Stop() error {
	c.grabMu.Lock()
	defer c.grabMu.Unlock()
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateStreaming {
		return stateError("stop", c.state)
	}

	typ := uint32(v4l2BufTypeVideoCapture)
	err := ioctl(c.fd, vidiocStreamoff, unsafe.Pointer(&typ))
	c.releaseBuffers()
	c.state = StateOpened
	return deviceError("VIDIOC_STREAMOFF", c.path, err)
}

// Grab returns a copy of the next raw frame.
func (c *Camera) Grab() ([]byte, error) {
	f, err := c.GrabFrame()
	if err != nil {
		return nil, err
	}
	return f.Data, nil
}

// GrabFrame waits for the next frame and returns a copy of it with its
// sequence number and timestamp. It blocks until a frame arrives or the grab
// timeout expires.
func (c *Camera) GrabFrame() (RawFrame, error) {
	c.grabMu.Lock()
	defer c.grabMu.Unlock()

	c.mu.Lock()
	state, fd, bufs, timeout := c.state, c.fd, c.bufs, c.grabTimeout
	c.mu.Unlock()

	if state != StateStreaming {
		return RawFrame{}, stateError("grab", state)
	}

	var deadline time.Time
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}

	for {
		if err := waitReadable(fd, c.path, deadline); err != nil {
			return RawFrame{}, err
		}

		buf := v4l2Buffer{
			typ:    v4l2BufTypeVideoCapture,
			memory: v4l2MemoryMmap,
		}
		if err := ioctl(fd, vidiocDqbuf, unsafe.Pointer(&buf)); err != nil {
			if errors.Is(err, unix.EAGAIN) {
				continue // spurious wakeup
			}
			return RawFrame{}, deviceError("VIDIOC_DQBUF", c.path, err)
		}

		frame := RawFrame{
			Sequence:  buf.sequence,
			Timestamp: time.Duration(buf.timestamp.Nano()),
		}
		if int(buf.index) < len(bufs) {
			src := bufs[buf.index]
			n := int(buf.bytesused)
			if n > len(src) {
				n = len(src)
			}
			frame.Data = make([]byte, n)
			copy(frame.Data, src[:n])
		}

		if err := ioctl(fd, vidiocQbuf, unsafe.Pointer(&buf)); err != nil {
			return RawFrame{}, deviceError("VIDIOC_QBUF", c.path, err)
		}
		return frame, nil
	}
}

// waitReadable polls the descriptor until a buffer is ready or the deadline
// passes. A zero deadline waits forever.
func waitReadable(fd int, path string, deadline time.Time) error {
	fds := []unix.PollFd{{Fd: int32(fd), Events: unix.POLLIN}}
	for {
		timeout := -1
		if !deadline.IsZero() {
			remaining := time.Until(deadline)
			if remaining <= 0 {
				return deviceError("poll", path, ErrTimeout)
			}
			timeout = int(remaining / time.Millisecond)
			if timeout == 0 {
				timeout = 1
			}
		}

		n, err := unix.Poll(fds, timeout)
		if errors.Is(err, unix.EINTR) {
			continue
		}
		if err != nil {
			return deviceError("poll", path, err)
		}
		if n == 0 {
			return deviceError("poll", path, ErrTimeout)
		}
		if fds[0].Revents&(unix.POLLERR|unix.POLLHUP|unix.POLLNVAL) != 0 {
			return deviceError("poll", path, unix.EIO)
		}
		return nil
	}
}
