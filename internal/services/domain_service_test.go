package services

import (
	"errors"
	"testing"
)

func TestAddDomainValidatesHostname(t *testing.T) {
	db := setupTestDB(t)
	svc := NewDomainService(db)
	user := createTestUser(t, db, "domains@example.com")

	for _, host := range []string{"", "nodots", "-bad.example.com", "UPPER CASE .com"} {
		_, err := svc.AddDomain(user.ID, host)
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Errorf("AddDomain(%q): expected ValidationError, got %v", host, err)
		}
	}

	domain, err := svc.AddDomain(user.ID, "  IMG.Example.COM  ")
	if err != nil {
		t.Fatalf("add domain: %v", err)
	}
	if domain.Hostname != "img.example.com" {
		t.Errorf("hostname not normalized: %q", domain.Hostname)
	}
	if len(domain.VerificationToken) != 32 {
		t.Errorf("verification token = %q", domain.VerificationToken)
	}

	// Same hostname cannot be claimed twice
	_, err = svc.AddDomain(user.ID, "img.example.com")
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError for duplicate hostname, got %v", err)
	}
}

func TestVerifyDomainChecksTXTRecord(t *testing.T) {
	db := setupTestDB(t)
	svc := NewDomainService(db)
	user := createTestUser(t, db, "domains@example.com")

	domain, err := svc.AddDomain(user.ID, "img.example.com")
	if err != nil {
		t.Fatalf("add domain: %v", err)
	}

	svc.lookupTXT = func(name string) ([]string, error) {
		return []string{"unrelated=record"}, nil
	}
	_, err = svc.VerifyDomain(user.ID, domain.ID)
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError without TXT record, got %v", err)
	}

	svc.lookupTXT = func(name string) ([]string, error) {
		if name != "img.example.com" {
			t.Errorf("lookup for wrong host: %s", name)
		}
		return []string{"snapvault-verify=" + domain.VerificationToken}, nil
	}
	verified, err := svc.VerifyDomain(user.ID, domain.ID)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !verified.Verified || verified.VerifiedAt == nil {
		t.Errorf("domain not marked verified")
	}

	// Already-verified domains skip the DNS lookup
	svc.lookupTXT = func(name string) ([]string, error) {
		t.Error("lookup called for an already verified domain")
		return nil, nil
	}
	if _, err := svc.VerifyDomain(user.ID, domain.ID); err != nil {
		t.Fatalf("re-verify: %v", err)
	}
}

func TestVerifyDomainScopedToOwner(t *testing.T) {
	db := setupTestDB(t)
	svc := NewDomainService(db)
	owner := createTestUser(t, db, "owner@example.com")
	other := createTestUser(t, db, "other@example.com")

	domain, err := svc.AddDomain(owner.ID, "img.example.com")
	if err != nil {
		t.Fatalf("add domain: %v", err)
	}

	_, err = svc.VerifyDomain(other.ID, domain.ID)
	var nfErr *NotFoundError
	if !errors.As(err, &nfErr) {
		t.Fatalf("expected NotFoundError for non-owner, got %v", err)
	}
}
