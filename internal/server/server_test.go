package server_test

import (
	"context"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/tls"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"math/big"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/testifysec/gatekeeper-authoring/internal/server"
)

// selfSigned writes a certificate for 127.0.0.1 and its key to dir.
func selfSigned(dir string) (certFile, keyFile string, pool *x509.CertPool) {
	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	Expect(err).NotTo(HaveOccurred())

	template := &x509.Certificate{
		SerialNumber:          big.NewInt(1),
		Subject:               pkix.Name{CommonName: "lint-server"},
		NotBefore:             time.Now().Add(-time.Hour),
		NotAfter:              time.Now().Add(time.Hour),
		IPAddresses:           []net.IP{net.ParseIP("127.0.0.1")},
		KeyUsage:              x509.KeyUsageDigitalSignature | x509.KeyUsageCertSign,
		ExtKeyUsage:           []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
		BasicConstraintsValid: true,
		IsCA:                  true,
	}
	der, err := x509.CreateCertificate(rand.Reader, template, template, &key.PublicKey, key)
	Expect(err).NotTo(HaveOccurred())
	keyDER, err := x509.MarshalPKCS8PrivateKey(key)
	Expect(err).NotTo(HaveOccurred())

	certFile = filepath.Join(dir, "tls.crt")
	keyFile = filepath.Join(dir, "tls.key")
	Expect(os.WriteFile(certFile, pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: der}), 0o600)).To(Succeed())
	Expect(os.WriteFile(keyFile, pem.EncodeToMemory(&pem.Block{Type: "PRIVATE KEY", Bytes: keyDER}), 0o600)).To(Succeed())

	cert, err := x509.ParseCertificate(der)
	Expect(err).NotTo(HaveOccurred())
	pool = x509.NewCertPool()
	pool.AddCert(cert)
	return certFile, keyFile, pool
}

func serve(s *server.Server) string {
	ctx, cancel := context.WithCancel(context.Background())
	l, err := net.Listen("tcp", "127.0.0.1:0")
	Expect(err).NotTo(HaveOccurred())

	done := make(chan error, 1)
	go func() {
		defer GinkgoRecover()
		done <- s.Serve(ctx, l)
	}()
	DeferCleanup(func() {
		cancel()
		Eventually(done).Should(Receive(BeNil()))
	})
	return l.Addr().String()
}

var _ = Describe("Server", func() {
	var ctx context.Context

	BeforeEach(func() {
		var cancel context.CancelFunc
		ctx, cancel = context.WithCancel(context.Background())
		DeferCleanup(cancel)
	})

	It("formats the listen address", func() {
		Expect(server.Config{Address: "localhost", Port: 8090}.Addr()).To(Equal("localhost:8090"))
	})

	It("requires the certificate and key together", func() {
		_, err := server.New(ctx, server.Config{CertFile: "tls.crt"})
		Expect(err).To(MatchError(ContainSubstring("must be given together")))
	})

	It("requires TLS for client authentication", func() {
		_, err := server.New(ctx, server.Config{ClientCAFile: "ca.crt"})
		Expect(err).To(HaveOccurred())
	})

	It("fails on unreadable key pairs", func() {
		dir := GinkgoT().TempDir()
		_, err := server.New(ctx, server.Config{
			CertFile: filepath.Join(dir, "missing.crt"),
			KeyFile:  filepath.Join(dir, "missing.key"),
		})
		Expect(err).To(MatchError(ContainSubstring("loading key pair")))
	})

	It("rejects a client CA without certificates", func() {
		dir := GinkgoT().TempDir()
		certFile, keyFile, _ := selfSigned(dir)
		caFile := filepath.Join(dir, "ca.crt")
		Expect(os.WriteFile(caFile, []byte("not a certificate"), 0o600)).To(Succeed())

		_, err := server.New(ctx, server.Config{CertFile: certFile, KeyFile: keyFile, ClientCAFile: caFile})
		Expect(err).To(MatchError(ContainSubstring("no certificates found")))
	})

	It("serves plain HTTP", func() {
		s, err := server.New(ctx, server.Config{})
		Expect(err).NotTo(HaveOccurred())
		Expect(s.TLS()).To(BeFalse())

		addr := serve(s)
		resp, err := http.Post("http://"+addr+"/schema", "application/json", strings.NewReader(`{"text": "input.parameters.owner"}`))
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
	})

	It("serves TLS with the configured key pair", func() {
		certFile, keyFile, pool := selfSigned(GinkgoT().TempDir())
		s, err := server.New(ctx, server.Config{CertFile: certFile, KeyFile: keyFile})
		Expect(err).NotTo(HaveOccurred())
		Expect(s.TLS()).To(BeTrue())

		addr := serve(s)
		client := &http.Client{Transport: &http.Transport{
			TLSClientConfig: &tls.Config{RootCAs: pool, MinVersion: tls.VersionTLS13},
		}}
		resp, err := client.Get("https://" + addr + "/healthz")
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		Expect(resp.TLS).NotTo(BeNil())
	})
})
