//go:build e2e
// +build e2e

package e2e

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"testing"

	authpb "github.com/vibast-solutions/ms-go-auth/app/types"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const defaultAuthMockAddr = "0.0.0.0:38085"

// internalCaller is an API key the auth mock resolves, with the services the
// key may reach. The key can be overridden through envKey so the suite can
// run against a shared auth deployment.
type internalCaller struct {
	envKey      string
	defaultKey  string
	serviceName string
	access      []string
}

func (c internalCaller) apiKey() string {
	return envOrDefault(c.envKey, c.defaultKey)
}

var (
	// ordersApp is the key the orders service itself presents to auth.
	ordersApp = internalCaller{envKey: "ORDERS_APP_API_KEY", defaultKey: "orders-app-api-key", serviceName: "orders-service"}

	backofficeCaller = internalCaller{
		envKey:      "ORDERS_CALLER_API_KEY",
		defaultKey:  "storefront-backoffice-key",
		serviceName: "storefront-backoffice",
		access:      []string{"orders-service", "catalog-service"},
	}
	catalogSyncCaller = internalCaller{
		envKey:      "ORDERS_NO_ACCESS_API_KEY",
		defaultKey:  "catalog-sync-key",
		serviceName: "catalog-sync",
		access:      []string{"catalog-service"},
	}
)

func ordersCallerAPIKey() string   { return backofficeCaller.apiKey() }
func ordersNoAccessAPIKey() string { return catalogSyncCaller.apiKey() }

// authMock answers ValidateInternalAccess for the known callers and counts
// which callers the orders service asked about.
type authMock struct {
	authpb.UnimplementedAuthServiceServer

	callers map[string]internalCaller

	mu       sync.Mutex
	resolved map[string]int
}

func newAuthMock(callers ...internalCaller) *authMock {
	byKey := make(map[string]internalCaller, len(callers))
	for _, caller := range callers {
		byKey[caller.apiKey()] = caller
	}
	return &authMock{callers: byKey, resolved: map[string]int{}}
}

func (m *authMock) ValidateInternalAccess(ctx context.Context, req *authpb.ValidateInternalAccessRequest) (*authpb.ValidateInternalAccessResponse, error) {
	if presentedKey(ctx) != ordersApp.apiKey() {
		return nil, status.Error(codes.Unauthenticated, "unknown application key")
	}

	caller, ok := m.callers[strings.TrimSpace(req.GetApiKey())]
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "invalid api key")
	}

	m.mu.Lock()
	m.resolved[caller.serviceName]++
	m.mu.Unlock()

	return &authpb.ValidateInternalAccessResponse{
		ServiceName:   caller.serviceName,
		AllowedAccess: append([]string(nil), caller.access...),
	}, nil
}

func (m *authMock) resolvedCount(serviceName string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resolved[serviceName]
}

func presentedKey(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	if values := md.Get("x-api-key"); len(values) > 0 {
		return strings.TrimSpace(values[0])
	}
	return ""
}

var authServer *authMock

func TestMain(m *testing.M) {
	authServer = newAuthMock(backofficeCaller, catalogSyncCaller)

	addr := envOrDefault("ORDERS_AUTH_MOCK_ADDR", defaultAuthMockAddr)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		fmt.Fprintf(os.Stderr, "auth mock: listen on %s: %v\n", addr, err)
		os.Exit(1)
	}

	grpcServer := grpc.NewServer()
	authpb.RegisterAuthServiceServer(grpcServer, authServer)
	go func() {
		_ = grpcServer.Serve(listener)
	}()

	exitCode := m.Run()

	grpcServer.GracefulStop()
	os.Exit(exitCode)
}
