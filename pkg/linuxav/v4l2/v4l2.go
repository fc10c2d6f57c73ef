//go:build linux

// Package v4l2 provides pure Go access to Video4Linux2 capture devices:
// enumeration, format and control negotiation, mmap streaming and HDMI
// signal detection.
//
// This package does not use cgo, enabling simple cross-compilation for
// different Linux architectures (amd64, arm64, arm).
//
// # Device Enumeration
//
// Use FindDevices or Cameras to discover capture devices:
//
//	cams, err := v4l2.Cameras()
//	for _, cam := range cams {
//	    fmt.Printf("%s: %s\n", cam.Device(), cam.Name())
//	}
//
// # Capturing
//
// A Camera moves through closed, opened and streaming states:
//
//	cam := v4l2.NewCamera("/dev/video0")
//	if err := cam.Open(); err != nil {
//	    return err
//	}
//	defer cam.Close()
//
//	f, _ := cam.AutoSetFormat()
//	if err := cam.Start(); err != nil {
//	    return err
//	}
//	defer cam.Stop()
//
//	rgb, err := cam.GrabDecoded(false) // f.Width*f.Height*3 bytes
//
// Grab returns the undecoded frame; package decode converts it later.
//
// # HDMI Signal Detection
//
// For HDMI capture devices, check signal status:
//
//	status := v4l2.GetDVTimings("/dev/video0")
//	if status.State == v4l2.SignalStateLocked {
//	    fmt.Printf("Signal: %dx%d @ %.2f fps\n", status.Width, status.Height, status.FPS)
//	}
//
// WaitForSourceChange blocks until the receiver reports a resolution or
// signal change.
package v4l2
