// Copyright lowRISC contributors (OpenTitan project).
// Licensed under the Apache License, Version 2.0, see LICENSE for details.
// SPDX-License-Identifier: Apache-2.0

// Package main implements a combined RTCS/TSP responder: RTCS answers
// real-time certificate-status queries over HTTP, TSP answers
// RFC 3161 time-stamp requests over the 5-byte-framed raw-socket
// transport spec.md section 6 describes, and an optional gRPC
// listener exposes health/reflection so the service composes into a
// standard gRPC deployment without this tree fabricating a
// certificate/timestamp protobuf service it was never asked to define.
// Modeled on src/spm/spm_server.go's flag-configured, single-binary
// gRPC server, widened to run three independent listeners
// concurrently via errgroup instead of one.
package main

import (
	"context"
	"crypto"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	clientv3 "go.etcd.io/etcd/client/v3"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/lowRISC/otcryptocore/internal/asn1io"
	"github.com/lowRISC/otcryptocore/internal/attrstore"
	"github.com/lowRISC/otcryptocore/internal/attrstore/sqlstore"
	"github.com/lowRISC/otcryptocore/internal/certwriter"
	"github.com/lowRISC/otcryptocore/internal/chain"
	"github.com/lowRISC/otcryptocore/internal/cmssigner"
	"github.com/lowRISC/otcryptocore/internal/keycodec"
	"github.com/lowRISC/otcryptocore/internal/logger"
	"github.com/lowRISC/otcryptocore/internal/rtcs"
	"github.com/lowRISC/otcryptocore/internal/spmkernel"
	"github.com/lowRISC/otcryptocore/internal/tsp"
	"github.com/lowRISC/otcryptocore/internal/version"
)

var (
	rtcsAddr  = flag.String("rtcs_addr", ":8442", "HTTP listen address for RTCS certificate-status requests")
	tspAddr   = flag.String("tsp_addr", ":8443", "Raw-socket listen address for framed TSP requests")
	grpcPort  = flag.Int("grpc_port", 0, "Port for the gRPC health/reflection listener; 0 disables it")
	device    = flag.String("device", "software", `Key source for the responder key: "software" or "pkcs11"`)
	hsmSOPath = flag.String("hsm_so", "", "File path to the PKCS#11 .so library; required when --device=pkcs11")
	hsmSlot   = flag.Uint("hsm_slot", 0, "The HSM slot number")
	hsmPIN    = flag.String("hsm_pin", "", "The HSM token PIN")
	keyBits   = flag.Int("key_bits", 2048, "RSA modulus size in bits for the responder key")
	responderCN = flag.String("responder_cn", "OpenTitan Test TSA", "Responder certificate CommonName")

	cacheEndpoints = flag.String("cache_endpoints", "", "Comma-separated etcd endpoints for the chain cache; empty disables caching")
	pkiUserDB      = flag.String("pkiuser_db", "", "Path to the PKI-user SQLite database; empty disables operator authentication")
	operatorUserID = flag.String("operator_user_id", "", "PKI user ID the operator authenticates as, checked against --pkiuser_db")
	operatorAuthHex = flag.String("operator_authenticator_hex", "", "Hex-encoded plaintext authenticator presented by the operator")
	registerOperator = flag.Bool("register_operator", false, "Register --operator_user_id/--operator_authenticator_hex in --pkiuser_db and exit")

	revokedHashesHex = flag.String("revoked_hashes", "", "Comma-separated hex SHA-256 certificate hashes RTCS reports as invalid")

	showVer = flag.Bool("version", false, "Print version information and exit")
)

// memCertStore answers RTCS status queries against a fixed revoked
// set; a production deployment would back this with the attrstore
// records backing the CA's issued certificates instead.
type memCertStore struct {
	revoked map[string]bool
}

func (s *memCertStore) Status(certHash []byte) (bool, error) {
	return !s.revoked[string(certHash)], nil
}

func parseRevokedHashes(s string) (map[string]bool, error) {
	out := map[string]bool{}
	if s == "" {
		return out, nil
	}
	for _, h := range strings.Split(s, ",") {
		b, err := hex.DecodeString(strings.TrimSpace(h))
		if err != nil {
			return nil, err
		}
		out[string(b)] = true
	}
	return out, nil
}

func openDevice(log *logger.Logger) (spmkernel.Device, error) {
	if *device == "software" {
		return spmkernel.NewSoftwareDevice(), nil
	}
	log.Infof("opening PKCS#11 device via %s, slot %d", *hsmSOPath, *hsmSlot)
	return spmkernel.OpenPKCS11Device("pkcs11", *hsmSOPath, *hsmSlot, *hsmPIN)
}

// buildResponderCert self-signs a certificate for the TSA's own
// signing key, giving the responder a subjectKeyIdentifier to use as
// the CMS SignerInfo keyID and a certificate hash to bind into TSP's
// ESSCertID signed attribute, the same way certtool signs its CA.
func buildResponderCert(dev spmkernel.Device, key spmkernel.KeyHandle) (*certwriter.CertInfo, []byte, []byte, error) {
	_, rsaPub, _, err := dev.PublicKey(key)
	if err != nil {
		return nil, nil, nil, err
	}
	info := &certwriter.CertInfo{
		Type:       certwriter.TypeCertificate,
		Version:    3,
		Serial:     []byte{0x01},
		Subject:    certwriter.DN{{Type: "O", Value: "OpenTitan"}, {Type: "CN", Value: *responderCN}},
		SelfSigned: true,
		NotBefore:  time.Now().UTC(),
		NotAfter:   time.Now().UTC().AddDate(5, 0, 0),
		Algorithm:  keycodec.AlgRSA,
		RSAKey:     rsaPub,
		Attrs:      attrstore.New(),
	}
	if err := certwriter.PreEncode(info); err != nil {
		return nil, nil, nil, err
	}
	tbs, err := certwriter.WriteTBSCertificate(info, asn1io.OIDSHA256WithRSA)
	if err != nil {
		return nil, nil, nil, err
	}
	digest := sha256.Sum256(tbs)
	sig, err := dev.Sign(key, crypto.SHA256, digest[:])
	if err != nil {
		return nil, nil, nil, err
	}
	der, err := certwriter.WriteCertificate(info, asn1io.OIDSHA256WithRSA, sig)
	if err != nil {
		return nil, nil, nil, err
	}
	certHash := sha256.Sum256(der)
	return info, der, certHash[:], nil
}

func runOperatorRegistration(ctx context.Context) error {
	if *operatorUserID == "" || *operatorAuthHex == "" {
		return fmt.Errorf("--register_operator requires --operator_user_id and --operator_authenticator_hex")
	}
	plain, err := hex.DecodeString(*operatorAuthHex)
	if err != nil {
		return fmt.Errorf("invalid --operator_authenticator_hex: %v", err)
	}
	store, err := sqlstore.Open(*pkiUserDB)
	if err != nil {
		return err
	}
	defer store.Close()
	enc, err := certwriter.EncryptPKIUserAuthenticator(plain)
	if err != nil {
		return err
	}
	return store.Insert(ctx, *operatorUserID, enc)
}

// checkOperator verifies --operator_authenticator_hex against the
// record stored under --operator_user_id before the responder starts,
// when a PKI-user database is configured.
func checkOperator(ctx context.Context) error {
	if *pkiUserDB == "" {
		return nil
	}
	store, err := sqlstore.Open(*pkiUserDB)
	if err != nil {
		return err
	}
	defer store.Close()
	if *operatorUserID == "" {
		return nil
	}
	revoked, err := store.IsRevoked(ctx, *operatorUserID)
	if err != nil {
		return err
	}
	if revoked {
		return fmt.Errorf("operator %q is revoked", *operatorUserID)
	}
	enc, err := store.Get(ctx, *operatorUserID)
	if err != nil {
		return err
	}
	stored, err := certwriter.DecryptPKIUserAuthenticator(enc)
	if err != nil {
		return err
	}
	presented, err := hex.DecodeString(*operatorAuthHex)
	if err != nil {
		return fmt.Errorf("invalid --operator_authenticator_hex: %v", err)
	}
	if string(stored) != string(presented) {
		return fmt.Errorf("operator authenticator mismatch for %q", *operatorUserID)
	}
	return nil
}

func openChainCache(zlog *zap.SugaredLogger) *chain.Store {
	if *cacheEndpoints == "" {
		return nil
	}
	cli, err := clientv3.New(clientv3.Config{
		Endpoints:   strings.Split(*cacheEndpoints, ","),
		DialTimeout: 5 * time.Second,
	})
	if err != nil {
		zlog.Warnf("chain cache disabled, failed to dial etcd: %v", err)
		return nil
	}
	return chain.NewStore(cli)
}

func rtcsHandler(store rtcs.CertStore, keyID []byte, sign cmssigner.Signer, ciphers []string, zlog *zap.SugaredLogger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		if err != nil {
			http.Error(w, "failed to read request", http.StatusBadRequest)
			return
		}
		entries, nonce, err := rtcs.ParseRequest(body)
		if err != nil {
			zlog.Infow("rejecting malformed RTCS request", "remote", r.RemoteAddr, "error", err)
			http.Error(w, "malformed RTCS request", http.StatusBadRequest)
			return
		}
		resp, err := rtcs.BuildResponse(entries, nonce, store, keyID, asn1io.OIDSHA256, asn1io.OIDSHA256WithRSA, ciphers, sign)
		if err != nil {
			zlog.Errorw("failed to build RTCS response", "remote", r.RemoteAddr, "error", err)
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "application/octet-stream")
		if _, err := w.Write(resp); err != nil {
			zlog.Warnw("failed to write RTCS response", "remote", r.RemoteAddr, "error", err)
		}
	}
}

func serveTSPConn(conn net.Conn, policy asn1io.OID, keyID, certHash []byte, sign cmssigner.Signer, ciphers []string, zlog *zap.SugaredLogger) {
	defer conn.Close()
	hdr := make([]byte, 4)
	if _, err := io.ReadFull(conn, hdr); err != nil {
		return
	}
	total := binary.BigEndian.Uint32(hdr)
	rest := make([]byte, total)
	if _, err := io.ReadFull(conn, rest); err != nil {
		zlog.Warnw("short TSP frame", "remote", conn.RemoteAddr(), "error", err)
		return
	}
	full := append(hdr, rest...)
	frameType, body, err := tsp.ReadFrame(full)
	if err != nil || frameType != tsp.FrameRequest {
		conn.Write(tsp.WriteFrame(tsp.FrameError, nil))
		return
	}
	req, err := tsp.ParseRequest(body)
	if err != nil {
		zlog.Infow("rejecting malformed TSP request", "remote", conn.RemoteAddr(), "error", err)
		conn.Write(tsp.RejectionResponse)
		return
	}
	resp, err := tsp.BuildResponse(req, policy, keyID, certHash, asn1io.OIDSHA256, asn1io.OIDSHA256WithRSA, ciphers, sign, true)
	if err != nil {
		zlog.Errorw("failed to build TSP response", "remote", conn.RemoteAddr(), "error", err)
	}
	conn.Write(resp)
}

func main() {
	flag.Parse()
	version.Print(*showVer)

	zapLogger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to build zap logger: %v\n", err)
		os.Exit(1)
	}
	defer zapLogger.Sync()
	zlog := zapLogger.Sugar()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if *registerOperator {
		if err := runOperatorRegistration(ctx); err != nil {
			zlog.Fatalf("operator registration failed: %v", err)
		}
		zlog.Infof("registered operator %q", *operatorUserID)
		return
	}
	if err := checkOperator(ctx); err != nil {
		zlog.Fatalf("operator authentication failed: %v", err)
	}

	log := logger.New("tsaserver", logger.LevelInfo)
	registry := spmkernel.NewRegistryWithLogger(log)

	dev, err := openDevice(log)
	if err != nil {
		zlog.Fatalf("failed to open device: %v", err)
	}
	if dev.Name() != "software" {
		registry.Register(dev)
	}

	responderKey, err := dev.GenerateKey(keycodec.AlgRSA, *keyBits)
	if err != nil {
		zlog.Fatalf("failed to generate responder key: %v", err)
	}
	responderInfo, responderDER, certHash, err := buildResponderCert(dev, responderKey)
	if err != nil {
		zlog.Fatalf("failed to build responder certificate: %v", err)
	}
	keyID := responderInfo.Attrs.Find(attrstore.TypeSubjectKeyIdentifier, 0)
	if keyID == nil {
		zlog.Fatalf("responder certificate is missing a subjectKeyIdentifier")
	}

	sign := func(hash crypto.Hash, digest []byte) ([]byte, error) {
		return dev.Sign(responderKey, hash, digest)
	}
	ciphers := registry.AvailableCiphers()

	revoked, err := parseRevokedHashes(*revokedHashesHex)
	if err != nil {
		zlog.Fatalf("invalid --revoked_hashes: %v", err)
	}
	store := &memCertStore{revoked: revoked}

	if cache := openChainCache(zlog); cache != nil {
		if err := cache.Put(ctx, keyID.Bytes, chain.WriteSSLChain([][]byte{responderDER})); err != nil {
			zlog.Warnf("failed to seed chain cache: %v", err)
		} else {
			zlog.Infof("chain cache enabled against %s", *cacheEndpoints)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	rtcsServer := &http.Server{
		Addr:    *rtcsAddr,
		Handler: rtcsHandler(store, keyID.Bytes, sign, ciphers, zlog),
	}
	g.Go(func() error {
		zlog.Infof("RTCS responder listening on %s", *rtcsAddr)
		if err := rtcsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return err
		}
		return nil
	})

	tspListener, err := net.Listen("tcp", *tspAddr)
	if err != nil {
		zlog.Fatalf("failed to listen for TSP on %s: %v", *tspAddr, err)
	}
	g.Go(func() error {
		zlog.Infof("TSP responder listening on %s", *tspAddr)
		for {
			conn, err := tspListener.Accept()
			if err != nil {
				select {
				case <-gctx.Done():
					return nil
				default:
					return err
				}
			}
			go serveTSPConn(conn, asn1io.OIDTSPPolicy, keyID.Bytes, certHash, sign, ciphers, zlog)
		}
	})

	if *grpcPort != 0 {
		grpcListener, err := net.Listen("tcp", fmt.Sprintf(":%d", *grpcPort))
		if err != nil {
			zlog.Fatalf("failed to listen for gRPC on port %d: %v", *grpcPort, err)
		}
		grpcServer := grpc.NewServer()
		healthServer := health.NewServer()
		healthpb.RegisterHealthServer(grpcServer, healthServer)
		healthServer.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
		reflection.Register(grpcServer)
		g.Go(func() error {
			zlog.Infof("gRPC health/reflection listening on port %d", *grpcPort)
			return grpcServer.Serve(grpcListener)
		})
		g.Go(func() error {
			<-gctx.Done()
			grpcServer.GracefulStop()
			return nil
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		rtcsServer.Close()
		tspListener.Close()
		return nil
	})

	if err := g.Wait(); err != nil {
		zlog.Errorf("tsaserver exiting with error: %v", err)
		os.Exit(1)
	}
}
