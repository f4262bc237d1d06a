package handler

import (
	"bytes"
	"context"
	"errors"
	"net"
	"strconv"

	"dashcam/internal/config"
	"dashcam/internal/logger"
)

const (
	udpPacketSize = 65535
	// maxFrameSize bounds a reassembled frame; a camera that never sends an
	// end marker cannot grow its buffer past this.
	maxFrameSize = 8 << 20
)

var (
	jpegHeader = []byte{0xFF, 0xD8}
	jpegFooter = []byte{0xFF, 0xD9}
)

// FrameSink receives complete JPEG frames.
type FrameSink interface {
	HandleCameraImage(image []byte, camera string)
}

// FrameAssembler rebuilds JPEG frames from datagrams, per camera. A packet
// starting with the SOI marker begins a new frame; a packet ending with the
// EOI marker completes it. It is not safe for concurrent use.
type FrameAssembler struct {
	buffers map[string]*bytes.Buffer
}

func NewFrameAssembler() *FrameAssembler {
	return &FrameAssembler{buffers: make(map[string]*bytes.Buffer)}
}

// Push adds one packet and returns a copy of the frame when it completes.
func (a *FrameAssembler) Push(camera string, packet []byte) ([]byte, bool) {
	buf, ok := a.buffers[camera]
	if !ok {
		buf = new(bytes.Buffer)
		a.buffers[camera] = buf
	}

	if bytes.HasPrefix(packet, jpegHeader) {
		buf.Reset()
	} else if buf.Len() == 0 {
		// Mid-frame packet without a start; wait for the next SOI.
		return nil, false
	}

	if buf.Len()+len(packet) > maxFrameSize {
		buf.Reset()
		return nil, false
	}
	buf.Write(packet)

	if !bytes.HasSuffix(packet, jpegFooter) {
		return nil, false
	}

	frame := make([]byte, buf.Len())
	copy(frame, buf.Bytes())
	buf.Reset()
	return frame, true
}

// UDPCameraHandler listens for UDP packets from cameras, reassembles JPEG
// frames and forwards complete frames to sink until ctx is cancelled.
func UDPCameraHandler(ctx context.Context, sink FrameSink, logger *logger.Logger, cfg *config.Config) error {
	port := strconv.Itoa(cfg.CamerasPort)

	var lc net.ListenConfig
	pc, err := lc.ListenPacket(ctx, "udp", ":"+port)
	if err != nil {
		logger.Error("Failed to listen on UDP port %s: %v", port, err)
		return err
	}
	return ServeCameraPackets(ctx, pc, sink, logger, cfg)
}

// ServeCameraPackets reads frames from an open packet connection. The
// connection is closed when ctx is cancelled.
func ServeCameraPackets(ctx context.Context, pc net.PacketConn, sink FrameSink, logger *logger.Logger, cfg *config.Config) error {
	defer pc.Close()

	stop := context.AfterFunc(ctx, func() { pc.Close() })
	defer stop()

	logger.Info("UDP camera handler started on %s", pc.LocalAddr())

	assembler := NewFrameAssembler()
	packet := make([]byte, udpPacketSize)

	for {
		n, remoteAddr, err := pc.ReadFrom(packet)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				logger.Info("UDP camera handler stopped")
				return nil
			}
			logger.Error("Error reading UDP packet: %v", err)
			continue
		}

		ip := remoteAddr.String()
		if host, _, err := net.SplitHostPort(ip); err == nil {
			ip = host
		}

		if frame, ok := assembler.Push(cfg.CameraName(ip), packet[:n]); ok {
			sink.HandleCameraImage(frame, cfg.CameraName(ip))
		}
	}
}
