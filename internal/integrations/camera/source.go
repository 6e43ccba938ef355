package camera

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"face-attendance-go/config"

	log "github.com/sirupsen/logrus"
	"gocv.io/x/gocv"
)

var (
	// ErrDeviceBusy wird zurückgegeben, wenn die Kamera bereits geöffnet ist
	ErrDeviceBusy = errors.New("camera device already open")

	// ErrNotOpen wird zurückgegeben, wenn Frames ohne geöffnetes Gerät angefragt werden
	ErrNotOpen = errors.New("camera device not open")

	// ErrCaptureTimeout wird zurückgegeben, wenn innerhalb des Zeitfensters kein
	// Frame geliefert wurde
	ErrCaptureTimeout = errors.New("timed out waiting for camera frame")
)

// Source ist die einzige Kameraquelle des Prozesses. Alle Zugriffe auf das
// Gerät laufen über den internen Mutex, damit parallele Einschreibungs- und
// Erkennungsanfragen sich nicht um Frames streiten.
type Source struct {
	cfg config.CameraConfig

	mu      sync.Mutex
	capture *gocv.VideoCapture
	open    bool
}

// NewSource erstellt eine neue Kameraquelle (ohne das Gerät zu öffnen)
func NewSource(cfg config.CameraConfig) *Source {
	return &Source{cfg: cfg}
}

// Open öffnet das Kameragerät exklusiv. Ein zweites Open auf einer bereits
// geöffneten Quelle schlägt mit ErrDeviceBusy fehl.
func (s *Source) Open() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.open {
		return ErrDeviceBusy
	}

	capture, err := gocv.OpenVideoCapture(s.cfg.DeviceID)
	if err != nil {
		return fmt.Errorf("failed to open camera device %d: %w", s.cfg.DeviceID, err)
	}

	if s.cfg.FrameWidth > 0 {
		capture.Set(gocv.VideoCaptureFrameWidth, float64(s.cfg.FrameWidth))
	}
	if s.cfg.FrameHeight > 0 {
		capture.Set(gocv.VideoCaptureFrameHeight, float64(s.cfg.FrameHeight))
	}

	s.capture = capture
	s.open = true
	log.Infof("Camera device %d opened", s.cfg.DeviceID)
	return nil
}

// NextFrame liefert den nächsten Frame als JPEG-kodierte Bytes. Die Wartezeit
// ist durch capture_timeout_seconds begrenzt; danach ErrCaptureTimeout.
func (s *Source) NextFrame(ctx context.Context) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.readFrameLocked(ctx)
}

// readFrameLocked liest einen Frame; der Aufrufer muss den Mutex halten
func (s *Source) readFrameLocked(ctx context.Context) ([]byte, error) {
	if !s.open {
		return nil, ErrNotOpen
	}

	timeout := time.Duration(s.cfg.CaptureTimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	deadline := time.Now().Add(timeout)

	mat := gocv.NewMat()
	defer mat.Close()

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if time.Now().After(deadline) {
			return nil, ErrCaptureTimeout
		}

		if s.capture.Read(&mat) && !mat.Empty() {
			break
		}
		// Kurz warten, bevor erneut gelesen wird
		time.Sleep(10 * time.Millisecond)
	}

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		return nil, fmt.Errorf("failed to encode frame: %w", err)
	}
	defer buf.Close()

	frame := make([]byte, len(buf.GetBytes()))
	copy(frame, buf.GetBytes())
	return frame, nil
}

// Stream zieht fortlaufend Frames und übergibt sie an emit, bis der Kontext
// abgebrochen wird oder emit einen Fehler liefert (z.B. weil der Client die
// Verbindung getrennt hat). Es ist höchstens ein Frame gleichzeitig unterwegs.
func (s *Source) Stream(ctx context.Context, emit func(frame []byte) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		frame, err := s.NextFrame(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			return fmt.Errorf("stream capture failed: %w", err)
		}

		if err := emit(frame); err != nil {
			// Consumer hat die Verbindung beendet
			log.Debugf("Frame stream consumer gone: %v", err)
			return nil
		}
	}
}

// IsOpen prüft, ob das Gerät geöffnet ist
func (s *Source) IsOpen() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.open
}

// Close gibt das Kameragerät frei
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.open {
		return nil
	}

	err := s.capture.Close()
	s.capture = nil
	s.open = false
	log.Infof("Camera device %d closed", s.cfg.DeviceID)
	return err
}
