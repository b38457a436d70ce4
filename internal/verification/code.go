// Package verification derives the short numeric codes riders show their
// driver before a matched trip starts.
package verification

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/binary"
	"errors"
	"fmt"
	"time"
)

// Window is how long one derived code stays valid. The code for the previous
// window is also accepted so a code shown right before rollover still works.
const Window = 2 * time.Minute

// digits is the code length.
const digits = 6

// ErrCodeMismatch: the presented code matches neither the current nor the
// previous window.
var ErrCodeMismatch = errors.New("verification code mismatch")

// Service derives trip verification codes from a server-side secret. Codes
// are never stored; both generation and verification recompute them.
type Service struct {
	secret []byte
	now    func() time.Time
}

// NewService creates a verification service with the given secret.
func NewService(secret string) *Service {
	return &Service{secret: []byte(secret), now: time.Now}
}

// Code returns the verification code for a trip in the current window.
func (s *Service) Code(tripID string) string {
	return s.codeAt(tripID, s.now().Unix()/int64(Window.Seconds()))
}

// Verify checks a presented code against the current and previous windows.
// Comparison is constant-time; both windows are always derived.
func (s *Service) Verify(tripID, code string) error {
	window := s.now().Unix() / int64(Window.Seconds())
	current := subtle.ConstantTimeCompare([]byte(code), []byte(s.codeAt(tripID, window)))
	previous := subtle.ConstantTimeCompare([]byte(code), []byte(s.codeAt(tripID, window-1)))
	if current == 1 || previous == 1 {
		return nil
	}
	return ErrCodeMismatch
}

// codeAt derives the truncated-HMAC code for one trip and window, in the
// style of RFC 4226 dynamic truncation.
func (s *Service) codeAt(tripID string, window int64) string {
	mac := hmac.New(sha256.New, s.secret)
	mac.Write([]byte(tripID))
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], uint64(window))
	mac.Write(buf[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	value := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff
	return fmt.Sprintf("%0*d", digits, value%1000000)
}
