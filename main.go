package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/grpc-ecosystem/go-grpc-middleware/providers/prometheus"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/auth"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/logging"
	"github.com/grpc-ecosystem/go-grpc-middleware/v2/interceptors/recovery"
	"github.com/improbable-eng/grpc-web/go/grpcweb"
	"github.com/novaclub/club-sync/api"
	"github.com/novaclub/club-sync/config"
	"github.com/novaclub/club-sync/middleware"
	"github.com/novaclub/club-sync/proto"
	"github.com/novaclub/club-sync/store"
	"github.com/novaclub/club-sync/store/postgres"
	"github.com/novaclub/club-sync/store/sqlite"
	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/rs/cors"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/keepalive"
	"google.golang.org/grpc/status"
	"gopkg.in/natefinch/lumberjack.v2"
)

const sqliteFileName = "club-sync.db"

func main() {
	root := &cobra.Command{
		Use:           "club-sync",
		Short:         "Sports club back office and offline sync server",
		Version:       api.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
	root.AddCommand(serveCmd(), migrateCmd(), createUserCmd())

	if err := root.Execute(); err != nil {
		log.Fatalf("club-sync: %v", err)
	}
}

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the gRPC and HTTP servers",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve()
		},
	}
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig()
			if err != nil {
				return err
			}
			storage, err := openStorage(config)
			if err != nil {
				return err
			}
			log.Printf("migrations applied")
			return storage.Close()
		},
	}
}

func createUserCmd() *cobra.Command {
	var admin store.User
	var password, clubName string
	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create a club together with its admin account",
		RunE: func(cmd *cobra.Command, args []string) error {
			config, err := loadConfig()
			if err != nil {
				return err
			}
			storage, err := openStorage(config)
			if err != nil {
				return err
			}
			defer storage.Close()

			hashed, err := middleware.HashPassword(password)
			if err != nil {
				return err
			}
			admin.HashedPassword = hashed
			admin.Role = store.RoleAdmin
			admin.IsActive = true
			club := &store.Club{Name: clubName, Phone: admin.Phone, IsActive: true}
			if err := storage.CreateClub(cmd.Context(), club, &admin); err != nil {
				return fmt.Errorf("failed to create club: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "club %v\nuser %v <%v>\n", club.ID, admin.ID, admin.Email)
			return nil
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&admin.Email, "email", "", "admin email")
	flags.StringVar(&password, "password", "", "admin password")
	flags.StringVar(&admin.FirstName, "first-name", "Admin", "admin first name")
	flags.StringVar(&admin.LastName, "last-name", "", "admin last name")
	flags.StringVar(&admin.Phone, "phone", "", "club and admin phone")
	flags.StringVar(&clubName, "club-name", "", "club name")
	for _, name := range []string{"email", "password", "club-name"} {
		_ = cmd.MarkFlagRequired(name)
	}
	return cmd
}

func loadConfig() (*config.Config, error) {
	config, err := config.NewConfig()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	setupLogging(config)
	return config, nil
}

func setupLogging(config *config.Config) {
	if config.LogFile == "" {
		return
	}
	log.SetOutput(&lumberjack.Logger{
		Filename:   config.LogFile,
		MaxSize:    50,
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
	})
}

func openStorage(config *config.Config) (store.SyncStorage, error) {
	if config.PgDatabaseUrl != "" {
		storage, err := postgres.NewPGSyncStorage(config.PgDatabaseUrl)
		if err != nil {
			return nil, fmt.Errorf("failed to open postgres store: %w", err)
		}
		return storage, nil
	}
	if err := os.MkdirAll(config.SQLiteDirPath, 0700); err != nil {
		return nil, fmt.Errorf("failed to create sqlite dir: %w", err)
	}
	storage, err := sqlite.NewSQLiteSyncStorage(filepath.Join(config.SQLiteDirPath, sqliteFileName))
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite store: %w", err)
	}
	return storage, nil
}

func serve() error {
	config, err := loadConfig()
	if err != nil {
		return err
	}
	storage, err := openStorage(config)
	if err != nil {
		return err
	}
	defer storage.Close()

	tokens, err := middleware.NewTokenIssuer(config.TokenSigningKey, config.AccessTokenTTL())
	if err != nil {
		return err
	}
	if config.TokenSigningKey == "" {
		log.Printf("TOKEN_SIGNING_KEY is not set, access tokens will not survive a restart")
	}
	authenticator := middleware.NewAuthenticator(tokens, storage, config.CA())

	grpcListener, err := net.Listen("tcp", config.GrpcListenAddress)
	if err != nil {
		return fmt.Errorf("failed to listen: %w", err)
	}

	quitChan := make(chan struct{})
	defer close(quitChan)
	syncServer := NewPersistentSyncerServer(storage)
	syncServer.Start(quitChan)

	metrics := prometheus.NewServerMetrics()
	prom.MustRegister(metrics)
	s := CreateServer(authenticator, syncServer, metrics)

	gin.SetMode(gin.ReleaseMode)
	apiServer := api.NewServer(storage, syncServer.Syncer(), authenticator)
	apiServer.OnChange(syncServer.NotifyChange)
	httpServer := &http.Server{
		Addr:              config.HttpListenAddress,
		Handler:           httpHandler(s, apiServer.Handler(), config.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		log.Printf("HTTP server listening at %s", config.HttpListenAddress)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("failed to serve http: %v", err)
		}
	}()

	log.Printf("Server listening at %s", config.GrpcListenAddress)
	if err := s.Serve(grpcListener); err != nil {
		return fmt.Errorf("failed to serve: %w", err)
	}
	return nil
}

func CreateServer(authenticator *middleware.Authenticator, syncServer proto.SyncerServer, metrics *prometheus.ServerMetrics) *grpc.Server {
	logger := interceptorLogger()
	recoveryHandler := recovery.WithRecoveryHandler(func(p any) error {
		log.Printf("panic in grpc handler: %v", p)
		return status.Error(codes.Internal, "internal error")
	})

	unary := []grpc.UnaryServerInterceptor{
		logging.UnaryServerInterceptor(logger),
		auth.UnaryServerInterceptor(authenticator.AuthFunc),
		recovery.UnaryServerInterceptor(recoveryHandler),
	}
	stream := []grpc.StreamServerInterceptor{
		logging.StreamServerInterceptor(logger),
		auth.StreamServerInterceptor(authenticator.AuthFunc),
		recovery.StreamServerInterceptor(recoveryHandler),
	}
	if metrics != nil {
		unary = append([]grpc.UnaryServerInterceptor{metrics.UnaryServerInterceptor()}, unary...)
		stream = append([]grpc.StreamServerInterceptor{metrics.StreamServerInterceptor()}, stream...)
	}

	s := grpc.NewServer(
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             time.Second * 5,
			PermitWithoutStream: true,
		}),
		grpc.ChainUnaryInterceptor(unary...),
		grpc.ChainStreamInterceptor(stream...),
	)
	proto.RegisterSyncerServer(s, syncServer)
	if metrics != nil {
		metrics.InitializeMetrics(s)
	}
	return s
}

// httpHandler serves grpc-web calls from the PWA through the gRPC server and
// everything else through the REST API.
func httpHandler(s *grpc.Server, rest http.Handler, origins []string) http.Handler {
	allowed := make(map[string]bool, len(origins))
	for _, origin := range origins {
		allowed[origin] = true
	}
	wrapped := grpcweb.WrapServer(s, grpcweb.WithOriginFunc(func(origin string) bool {
		return allowed[origin]
	}))

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if wrapped.IsGrpcWebRequest(r) || wrapped.IsAcceptableGrpcCorsRequest(r) {
			wrapped.ServeHTTP(w, r)
			return
		}
		rest.ServeHTTP(w, r)
	})

	return cors.New(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"*"},
		ExposedHeaders:   []string{"Grpc-Status", "Grpc-Message"},
		AllowCredentials: true,
	}).Handler(handler)
}

func interceptorLogger() logging.Logger {
	return logging.LoggerFunc(func(ctx context.Context, lvl logging.Level, msg string, fields ...any) {
		log.Printf("grpc %v: %s %v", levelName(lvl), msg, fields)
	})
}

func levelName(lvl logging.Level) string {
	switch {
	case lvl >= logging.LevelError:
		return "ERROR"
	case lvl >= logging.LevelWarn:
		return "WARN"
	case lvl >= logging.LevelInfo:
		return "INFO"
	}
	return "DEBUG"
}
