package server

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"log/slog"
	"math/big"
	"os"
	"time"
)

// generateSelfSignedTLSConfig loads or creates a throwaway dev certificate.
// Never used when cert_file/key_file are configured.
func generateSelfSignedTLSConfig() (*tls.Config, error) {
	certFile := "dev_cert.pem"
	keyFile := "dev_key.pem"

	cert, err := tls.LoadX509KeyPair(certFile, keyFile)
	if err == nil {
		slog.Info("Loaded existing dev certificate", "cert", certFile)
		return &tls.Config{
			Certificates: []tls.Certificate{cert},
			NextProtos:   []string{"h3", "webtransport"},
			MinVersion:   tls.VersionTLS13,
		}, nil
	}

	slog.Info("Generating new dev certificate")
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, err
	}

	template := x509.Certificate{
		SerialNumber: big.NewInt(1),
		Subject: pkix.Name{
			Organization: []string{"Messenger Dev"},
		},
		NotBefore:             time.Now().Add(-1 * time.Hour),      // backdate slightly to avoid clock skew
		NotAfter:              time.Now().Add(24 * time.Hour * 10), // max 14 days for WebTransport self-signed
		KeyUsage:              x509.KeyUsageKeyEncipherment | x509.KeyUsageDigitalSignature,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		DNSNames:              []string{"localhost"},
	}

	certDER, err := x509.CreateCertificate(rand.Reader, &template, &template, &key.PublicKey, key)
	if err != nil {
		return nil, err
	}

	certOut, err := os.Create(certFile)
	if err != nil {
		return nil, err
	}
	defer certOut.Close()
	if err := pem.Encode(certOut, &pem.Block{Type: "CERTIFICATE", Bytes: certDER}); err != nil {
		return nil, err
	}

	keyOut, err := os.OpenFile(keyFile, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return nil, err
	}
	defer keyOut.Close()
	keyBytes, err := x509.MarshalECPrivateKey(key)
	if err != nil {
		return nil, err
	}
	if err := pem.Encode(keyOut, &pem.Block{Type: "EC PRIVATE KEY", Bytes: keyBytes}); err != nil {
		return nil, err
	}

	slog.Info("Dev certificate saved", "cert", certFile, "key", keyFile)

	cert, err = tls.LoadX509KeyPair(certFile, keyFile)
	if err != nil {
		return nil, err
	}

	return &tls.Config{
		Certificates: []tls.Certificate{cert},
		NextProtos:   []string{"h3", "webtransport"},
		MinVersion:   tls.VersionTLS13,
	}, nil
}
