package dbbadger

import (
	"context"
	"fmt"

	"github.com/timshannon/badgerhold/v4"

	"github.com/gcert-network/gcert-daemon/internal/core/domain"
)

type certificateRepositoryImpl struct {
	db *DbManager
}

func newCertificateRepositoryImpl(db *DbManager) domain.CertificateRepository {
	return certificateRepositoryImpl{db: db}
}

func certKey(registry, certificateID string) string {
	return fmt.Sprintf("%s/%s", registry, certificateID)
}

func attributeKey(attribute domain.WalletAttribute) string {
	return fmt.Sprintf(
		"%s/%s/%s/%s",
		attribute.Owner, attribute.Registry, attribute.CertificateID, attribute.Key,
	)
}

func (r certificateRepositoryImpl) InsertCertificate(
	ctx context.Context, certificate *domain.Certificate,
) error {
	key := certKey(certificate.Registry, certificate.ID)

	var err error
	if tx := r.db.getTx(ctx); tx != nil {
		err = r.db.store.TxInsert(tx, key, certificate)
	} else {
		err = r.db.store.Insert(key, certificate)
	}
	if err != nil && err != badgerhold.ErrKeyExists {
		return err
	}
	return nil
}

func (r certificateRepositoryImpl) GetCertificate(
	ctx context.Context, registry, certificateID string,
) (*domain.Certificate, error) {
	var certificate domain.Certificate
	var err error
	if tx := r.db.getTx(ctx); tx != nil {
		err = r.db.store.TxGet(tx, certKey(registry, certificateID), &certificate)
	} else {
		err = r.db.store.Get(certKey(registry, certificateID), &certificate)
	}
	if err != nil {
		if err == badgerhold.ErrNotFound {
			return nil, domain.ErrCertificateNotFound
		}
		return nil, err
	}
	return &certificate, nil
}

func (r certificateRepositoryImpl) UpdateCertificate(
	ctx context.Context, registry, certificateID string,
	updateFn func(*domain.Certificate) (*domain.Certificate, error),
) error {
	currentCert, err := r.GetCertificate(ctx, registry, certificateID)
	if err != nil {
		return err
	}

	updatedCert, err := updateFn(currentCert)
	if err != nil {
		return err
	}

	key := certKey(registry, certificateID)
	if tx := r.db.getTx(ctx); tx != nil {
		return r.db.store.TxUpdate(tx, key, *updatedCert)
	}
	return r.db.store.Update(key, *updatedCert)
}

func (r certificateRepositoryImpl) InsertWalletAttribute(
	ctx context.Context, attribute domain.WalletAttribute,
) error {
	var err error
	if tx := r.db.getTx(ctx); tx != nil {
		err = r.db.store.TxInsert(tx, attributeKey(attribute), &attribute)
	} else {
		err = r.db.store.Insert(attributeKey(attribute), &attribute)
	}
	if err != nil && err != badgerhold.ErrKeyExists {
		return err
	}
	return nil
}

func (r certificateRepositoryImpl) GetWalletAttributes(
	ctx context.Context, owner, registry, certificateID string,
) ([]domain.WalletAttribute, error) {
	query := badgerhold.
		Where("Owner").Eq(owner).
		And("Registry").Eq(registry).
		And("CertificateID").Eq(certificateID)

	var attributes []domain.WalletAttribute
	var err error
	if tx := r.db.getTx(ctx); tx != nil {
		err = r.db.store.TxFind(tx, &attributes, query)
	} else {
		err = r.db.store.Find(&attributes, query)
	}
	return attributes, err
}
