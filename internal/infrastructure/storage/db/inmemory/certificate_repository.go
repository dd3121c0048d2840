package inmemory

import (
	"context"
	"fmt"
	"sync"

	"github.com/gcert-network/gcert-daemon/internal/core/domain"
)

type certificateRepository struct {
	lock         *sync.RWMutex
	certificates map[string]*domain.Certificate
	attributes   map[string][]domain.WalletAttribute
}

func newCertificateRepository() *certificateRepository {
	return &certificateRepository{
		lock:         &sync.RWMutex{},
		certificates: make(map[string]*domain.Certificate),
		attributes:   make(map[string][]domain.WalletAttribute),
	}
}

func certKey(registry, certificateID string) string {
	return fmt.Sprintf("%s/%s", registry, certificateID)
}

func (r *certificateRepository) InsertCertificate(
	_ context.Context, certificate *domain.Certificate,
) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	key := certKey(certificate.Registry, certificate.ID)
	if _, ok := r.certificates[key]; ok {
		return nil
	}
	c := *certificate
	r.certificates[key] = &c
	return nil
}

func (r *certificateRepository) GetCertificate(
	_ context.Context, registry, certificateID string,
) (*domain.Certificate, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	cert, ok := r.certificates[certKey(registry, certificateID)]
	if !ok {
		return nil, domain.ErrCertificateNotFound
	}
	c := *cert
	return &c, nil
}

func (r *certificateRepository) UpdateCertificate(
	_ context.Context, registry, certificateID string,
	updateFn func(*domain.Certificate) (*domain.Certificate, error),
) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	key := certKey(registry, certificateID)
	cert, ok := r.certificates[key]
	if !ok {
		return domain.ErrCertificateNotFound
	}

	updated, err := updateFn(cert)
	if err != nil {
		return err
	}
	r.certificates[key] = updated
	return nil
}

func (r *certificateRepository) InsertWalletAttribute(
	_ context.Context, attribute domain.WalletAttribute,
) error {
	r.lock.Lock()
	defer r.lock.Unlock()

	key := certKey(attribute.Registry, attribute.CertificateID)
	for _, existing := range r.attributes[key] {
		if existing.Owner == attribute.Owner && existing.Key == attribute.Key {
			return nil
		}
	}
	r.attributes[key] = append(r.attributes[key], attribute)
	return nil
}

func (r *certificateRepository) GetWalletAttributes(
	_ context.Context, owner, registry, certificateID string,
) ([]domain.WalletAttribute, error) {
	r.lock.RLock()
	defer r.lock.RUnlock()

	attrs := make([]domain.WalletAttribute, 0)
	for _, attr := range r.attributes[certKey(registry, certificateID)] {
		if attr.Owner == owner {
			attrs = append(attrs, attr)
		}
	}
	return attrs, nil
}
