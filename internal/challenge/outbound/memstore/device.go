package memstore

import (
	"context"
	"sort"

	"github.com/shandysiswandi/otpgate/internal/challenge/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
)

// GetDevice returns the trusted device or goerror.ErrNotFound.
func (s *Store) GetDevice(_ context.Context, subject, fingerprint string) (*entity.TrustedDevice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	dev, ok := s.devices[subject][fingerprint]
	if !ok {
		return nil, goerror.ErrNotFound
	}

	return &dev, nil
}

// SaveDevice inserts the device or refreshes its last sighting. The first
// sighting is kept across refreshes.
func (s *Store) SaveDevice(_ context.Context, dev entity.TrustedDevice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	devs, ok := s.devices[dev.Subject]
	if !ok {
		devs = make(map[string]entity.TrustedDevice)
		s.devices[dev.Subject] = devs
	}

	if prev, ok := devs[dev.Fingerprint]; ok {
		dev.FirstSeen = prev.FirstSeen
	}

	devs[dev.Fingerprint] = dev

	return nil
}

// ListDevices returns every trusted device for the subject, most recently
// seen first.
func (s *Store) ListDevices(_ context.Context, subject string) ([]entity.TrustedDevice, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]entity.TrustedDevice, 0, len(s.devices[subject]))
	for _, dev := range s.devices[subject] {
		out = append(out, dev)
	}

	sort.Slice(out, func(i, j int) bool {
		return out[i].LastSeen.After(out[j].LastSeen)
	})

	return out, nil
}

// DeleteDevices revokes every trusted device for the subject.
func (s *Store) DeleteDevices(_ context.Context, subject string) error {
	s.mu.Lock()
	delete(s.devices, subject)
	s.mu.Unlock()

	return nil
}
