// Package cli provides the main command-line interface and HTTP server for
// the trellis.io/ldp server. This package orchestrates the complete
// application lifecycle: configuration loading, storage driver selection,
// service construction, HTTP server setup, and graceful shutdown.
//
// The package wires together every component the LDP/WebDAV protocol
// surface depends on:
//   - a resource store (bolt; the couchdb choice fails at startup)
//   - a binary store (filesystem; the s3 choice fails at startup)
//   - a memento store for versioned snapshots
//   - an audit store (always bolt)
//   - a WebAC engine with a bounded cache (in-memory or Redis-backed)
//   - an optional AMQP notification emitter
//   - JWT-based principal extraction
//
// Architecture Overview:
//
//	CLI → Configuration → Stores → Pipeline → WebDAV/LDP Handler → Echo
package cli

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"trellis.io/ldp/audit"
	"trellis.io/ldp/binary"
	"trellis.io/ldp/cache"
	boltutil "trellis.io/ldp/db/bolt"
	trellishttp "trellis.io/ldp/http"
	"trellis.io/ldp/identifier"
	"trellis.io/ldp/ldp"
	"trellis.io/ldp/memento"
	"trellis.io/ldp/namespace"
	"trellis.io/ldp/notification"
	"trellis.io/ldp/queue"
	"trellis.io/ldp/rdf"
	"trellis.io/ldp/rdfio"
	"trellis.io/ldp/resource"
	"trellis.io/ldp/security"
	"trellis.io/ldp/version"
	"trellis.io/ldp/webac"
	"trellis.io/ldp/webdav"
)

// cfgFile holds the path to the configuration file specified via
// command-line flag.
//
// Configuration File Search Order (when cfgFile is empty):
//  1. $HOME/.trellis.yaml
//  2. ./.trellis.yaml
//  3. Environment variables with automatic mapping
var cfgFile string

// RootCmd is the entry point for the trellis server.
//
// Command Structure:
//
//	trellis [flags]
//	  ├── --config: Configuration file path
//	  ├── --port: HTTP server port
//	  ├── --base-url: Deployment base URL (external identifiers)
//	  ├── --data-dir: Directory for the bolt/filesystem drivers
//	  ├── --resource-store: "bolt" (default) or "couchdb"
//	  ├── --binary-store: "filesystem" (default) or "s3"
//	  ├── --couchdb-url / --couchdb-database: CouchDB connection
//	  ├── --s3-bucket / --s3-prefix: S3 binary store placement
//	  ├── --webac-cache: "memory" (default) or "redis"
//	  ├── --redis-url: Redis connection URL for the WebAC cache
//	  ├── --amqp-url / --amqp-exchange: notification publishing
//	  ├── --jwt-secret: JWT signing secret for principal extraction
//	  ├── --admin: repeatable agent IRI granted full WebAC access
//	  └── --weak-etag / --precondition-required / --memento-header-dates
var RootCmd = &cobra.Command{
	Use:   "trellis",
	Short: "a Linked Data Platform server with Memento versioning and WebAC authorization",
	Long: `Trellis

An HTTP server implementing the Linked Data Platform protocol, Memento
(RFC 7089) resource versioning, Web Access Control authorization, and a
WebDAV projection over the LDP primitives.

The server provides:
- RDFSource, NonRDFSource, and container (Basic/Direct/Indirect) resources
- Per-resource TimeMap/TimeGate negotiation via Accept-Datetime
- ACL graph discovery and mode evaluation with a bounded decision cache
- MKCOL/PROPFIND/PROPPATCH/COPY/MOVE/recursive DELETE over WebDAV
- Best-effort ActivityStreams 2.0 event publishing over AMQP

Configuration can be provided via command-line flags, environment
variables, or a YAML configuration file with automatic precedence
handling.`,
	Run: runServer,
}

func init() {
	cobra.OnInitialize(initConfig)

	RootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.trellis.yaml)")

	RootCmd.PersistentFlags().String("port", "", "Server port")
	RootCmd.PersistentFlags().String("base-url", "", "Deployment base URL, e.g. http://localhost:8080")
	RootCmd.PersistentFlags().String("data-dir", "", "Directory for bolt databases and filesystem stores")

	RootCmd.PersistentFlags().String("resource-store", "", `Resource store driver: "bolt" or "couchdb"`)
	RootCmd.PersistentFlags().String("couchdb-url", "", "CouchDB connection URL")
	RootCmd.PersistentFlags().String("couchdb-database", "", "CouchDB database name")

	RootCmd.PersistentFlags().String("binary-store", "", `Binary store driver: "filesystem" or "s3"`)
	RootCmd.PersistentFlags().String("s3-bucket", "", "S3 bucket for the binary store")
	RootCmd.PersistentFlags().String("s3-prefix", "", "S3 key prefix for the binary store")

	RootCmd.PersistentFlags().String("webac-cache", "", `WebAC decision cache driver: "memory" or "redis"`)
	RootCmd.PersistentFlags().String("redis-url", "", "Redis connection URL for the WebAC cache")
	RootCmd.PersistentFlags().Int("webac-cache-size", 0, "Maximum entries for the in-memory WebAC cache")
	RootCmd.PersistentFlags().Duration("webac-cache-ttl", 0, "TTL for cached WebAC decisions")

	RootCmd.PersistentFlags().String("amqp-url", "", "AMQP connection URL for notification publishing")
	RootCmd.PersistentFlags().String("amqp-exchange", "", "AMQP exchange for notification publishing")
	RootCmd.PersistentFlags().String("amqp-route-key", "", "AMQP routing key for notification publishing")

	RootCmd.PersistentFlags().String("jwt-secret", "", "JWT secret key for principal extraction")
	RootCmd.PersistentFlags().String("jwt-issuer", "", "Expected JWT issuer claim; empty skips issuer validation")
	RootCmd.PersistentFlags().String("jwt-audience", "", "Expected JWT audience claim; empty skips audience validation")
	RootCmd.PersistentFlags().StringSlice("admin", nil, "Agent IRI granted unconditional WebAC access (repeatable)")

	RootCmd.PersistentFlags().Bool("weak-etag", false, "Emit weak ETags instead of strong ETags")
	RootCmd.PersistentFlags().Bool("precondition-required", false, "Reject unconditional mutating requests with 428")
	RootCmd.PersistentFlags().Bool("memento-header-dates", false, "Enumerate every memento datetime in the Link header")

	viper.BindPFlag("port", RootCmd.PersistentFlags().Lookup("port"))
	viper.BindPFlag("base_url", RootCmd.PersistentFlags().Lookup("base-url"))
	viper.BindPFlag("data_dir", RootCmd.PersistentFlags().Lookup("data-dir"))
	viper.BindPFlag("resource_store.driver", RootCmd.PersistentFlags().Lookup("resource-store"))
	viper.BindPFlag("resource_store.couchdb_url", RootCmd.PersistentFlags().Lookup("couchdb-url"))
	viper.BindPFlag("resource_store.couchdb_database", RootCmd.PersistentFlags().Lookup("couchdb-database"))
	viper.BindPFlag("binary_store.driver", RootCmd.PersistentFlags().Lookup("binary-store"))
	viper.BindPFlag("binary_store.s3_bucket", RootCmd.PersistentFlags().Lookup("s3-bucket"))
	viper.BindPFlag("binary_store.s3_prefix", RootCmd.PersistentFlags().Lookup("s3-prefix"))
	viper.BindPFlag("webac.cache_driver", RootCmd.PersistentFlags().Lookup("webac-cache"))
	viper.BindPFlag("webac.redis_url", RootCmd.PersistentFlags().Lookup("redis-url"))
	viper.BindPFlag("webac.cache_size", RootCmd.PersistentFlags().Lookup("webac-cache-size"))
	viper.BindPFlag("webac.cache_ttl", RootCmd.PersistentFlags().Lookup("webac-cache-ttl"))
	viper.BindPFlag("amqp.url", RootCmd.PersistentFlags().Lookup("amqp-url"))
	viper.BindPFlag("amqp.exchange", RootCmd.PersistentFlags().Lookup("amqp-exchange"))
	viper.BindPFlag("amqp.route_key", RootCmd.PersistentFlags().Lookup("amqp-route-key"))
	viper.BindPFlag("jwt.secret", RootCmd.PersistentFlags().Lookup("jwt-secret"))
	viper.BindPFlag("jwt.issuer", RootCmd.PersistentFlags().Lookup("jwt-issuer"))
	viper.BindPFlag("jwt.audience", RootCmd.PersistentFlags().Lookup("jwt-audience"))
	viper.BindPFlag("admins", RootCmd.PersistentFlags().Lookup("admin"))
	viper.BindPFlag("weak_etag", RootCmd.PersistentFlags().Lookup("weak-etag"))
	viper.BindPFlag("precondition_required", RootCmd.PersistentFlags().Lookup("precondition-required"))
	viper.BindPFlag("memento_header_dates", RootCmd.PersistentFlags().Lookup("memento-header-dates"))
}

// initConfig initializes the configuration system using Viper.
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		viper.AddConfigPath(home)
		viper.AddConfigPath(".")
		viper.SetConfigType("yaml")
		viper.SetConfigName(".trellis")
	}

	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Println("Using config file:", viper.ConfigFileUsed())
	}
}

// serverConfig is the fully-resolved configuration runServer builds before
// constructing any store or service.
type serverConfig struct {
	port                string
	baseURL             string
	dataDir             string
	resourceStoreDriver string
	couchdbURL          string
	couchdbDatabase     string
	binaryStoreDriver   string
	s3Bucket            string
	s3Prefix            string
	webacCacheDriver    string
	redisURL            string
	webacCacheSize      int
	webacCacheTTL       time.Duration
	amqpURL             string
	amqpExchange        string
	amqpRouteKey        string
	jwtSecret           string
	jwtIssuer           string
	jwtAudience         string
	admins              []string
	weakETag            bool
	preconditionRequire bool
	mementoHeaderDates  bool
}

func loadServerConfig() serverConfig {
	return serverConfig{
		port:                viper.GetString("port"),
		baseURL:             viper.GetString("base_url"),
		dataDir:             viper.GetString("data_dir"),
		resourceStoreDriver: viper.GetString("resource_store.driver"),
		couchdbURL:          viper.GetString("resource_store.couchdb_url"),
		couchdbDatabase:     viper.GetString("resource_store.couchdb_database"),
		binaryStoreDriver:   viper.GetString("binary_store.driver"),
		s3Bucket:            viper.GetString("binary_store.s3_bucket"),
		s3Prefix:            viper.GetString("binary_store.s3_prefix"),
		webacCacheDriver:    viper.GetString("webac.cache_driver"),
		redisURL:            viper.GetString("webac.redis_url"),
		webacCacheSize:      viper.GetInt("webac.cache_size"),
		webacCacheTTL:       viper.GetDuration("webac.cache_ttl"),
		amqpURL:             viper.GetString("amqp.url"),
		amqpExchange:        viper.GetString("amqp.exchange"),
		amqpRouteKey:        viper.GetString("amqp.route_key"),
		jwtSecret:           viper.GetString("jwt.secret"),
		jwtIssuer:           viper.GetString("jwt.issuer"),
		jwtAudience:         viper.GetString("jwt.audience"),
		admins:              viper.GetStringSlice("admins"),
		weakETag:            viper.GetBool("weak_etag"),
		preconditionRequire: viper.GetBool("precondition_required"),
		mementoHeaderDates:  viper.GetBool("memento_header_dates"),
	}
}

func (c serverConfig) withDefaults() serverConfig {
	if c.port == "" {
		c.port = "8080"
	}
	if c.baseURL == "" {
		c.baseURL = "http://localhost:" + c.port
	}
	if c.dataDir == "" {
		c.dataDir = "./data"
	}
	if c.resourceStoreDriver == "" {
		c.resourceStoreDriver = "bolt"
	}
	if c.binaryStoreDriver == "" {
		c.binaryStoreDriver = "filesystem"
	}
	if c.webacCacheDriver == "" {
		c.webacCacheDriver = "memory"
	}
	if c.webacCacheSize == 0 {
		c.webacCacheSize = 10000
	}
	if c.webacCacheTTL == 0 {
		c.webacCacheTTL = 30 * time.Second
	}
	return c
}

// runServer initializes every store and service the LDP/WebDAV handler
// depends on, registers the route table, and runs the Echo server until an
// interrupt or termination signal triggers a graceful shutdown.
func runServer(cmd *cobra.Command, args []string) {
	cfg := loadServerConfig().withDefaults()

	if err := os.MkdirAll(cfg.dataDir, 0o755); err != nil {
		log.Fatalf("failed to create data directory: %v", err)
	}

	resources, closeResources, err := buildResourceStore(cfg)
	if err != nil {
		log.Fatalf("failed to initialize resource store: %v", err)
	}
	defer closeResources()

	binaries, err := buildBinaryStore(cfg)
	if err != nil {
		log.Fatalf("failed to initialize binary store: %v", err)
	}

	mementos := memento.NewFilesystemStore(cfg.dataDir+"/mementos", identifier.DefaultLayout(), nil)

	auditStore, closeAudit, err := buildAuditStore(cfg)
	if err != nil {
		log.Fatalf("failed to initialize audit store: %v", err)
	}
	defer closeAudit()

	emitter, err := buildNotificationEmitter(cfg)
	if err != nil {
		log.Fatalf("failed to initialize notification emitter: %v", err)
	}

	pipeline := ldp.New(resources, binaries, mementos, auditStore, emitter, nil)

	ns, err := namespace.New("")
	if err != nil {
		log.Fatalf("failed to initialize namespace service: %v", err)
	}
	rdfSvc := rdfio.NewService(ns)

	webacCache, err := buildWebACCache(cfg)
	if err != nil {
		log.Fatalf("failed to initialize WebAC cache: %v", err)
	}

	admins := map[string]bool{}
	for _, a := range cfg.admins {
		admins[a] = true
	}
	engine := &webac.Engine{
		Resources:          resources,
		AccessControlGraph: accessControlGraph,
		Admins:             admins,
		BaseURL:            cfg.baseURL,
	}
	cachedEngine := &webac.CachedEngine{Engine: engine, Cache: webacCache, TTL: cfg.webacCacheTTL}

	var jwtService *security.JWTService
	if cfg.jwtSecret != "" {
		if cfg.jwtIssuer != "" || cfg.jwtAudience != "" {
			jwtService = security.NewJWTServiceWithIssuer(cfg.jwtSecret, cfg.jwtIssuer, cfg.jwtAudience)
		} else {
			jwtService = security.NewJWTService(cfg.jwtSecret)
		}
	}

	ldpHandler := &ldp.Handler{
		Pipeline:             pipeline,
		Resources:            resources,
		Binaries:             binaries,
		Mementos:             mementos,
		RDFIO:                rdfSvc,
		WebAC:                cachedEngine,
		IDs:                  identifier.DefaultBinaryIDSupplier(),
		JWT:                  jwtService,
		BaseURL:              cfg.baseURL,
		WeakETag:             cfg.weakETag,
		PreconditionRequired: cfg.preconditionRequire,
		MementoHeaderDates:   cfg.mementoHeaderDates,
	}

	if err := ensureRoot(resources, pipeline); err != nil {
		log.Fatalf("failed to seed root container: %v", err)
	}

	davHandler := webdav.New(ldpHandler)

	e := trellishttp.NewEchoServer(trellishttp.ServerConfig{
		Port:           0,
		Debug:          false,
		BodyLimit:      "100M",
		AllowedOrigins: []string{"*"},
	})
	e.HTTPErrorHandler = trellishttp.CustomHTTPErrorHandler
	e.GET("/health", trellishttp.HealthCheckHandler("trellis", version.GetTrellisVersion()))
	davHandler.RegisterRoutes(e)

	go func() {
		log.Printf("trellis server starting on port %s (base URL %s)", cfg.port, cfg.baseURL)
		if err := e.Start(":" + cfg.port); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	log.Println("shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(ctx); err != nil {
		log.Fatal(err)
	}
}

// accessControlGraph extracts a resource's PreferAccessControl quads, the
// extraction webac.Engine.Modes needs to parse acl:Authorization resources
// out of a resource's named-graph stream, per spec.md §4.6.
func accessControlGraph(r *resource.Resource) []rdf.Quad {
	if r.Stream == nil {
		return nil
	}
	const graphAccessControl = "http://www.w3.org/ns/ldp#PreferAccessControl"
	var out []rdf.Quad
	for _, q := range r.Stream.All() {
		if q.Graph.Value == graphAccessControl {
			out = append(out, q)
		}
	}
	return out
}

// ensureRoot creates the "/" BasicContainer the deployment's containment
// tree is rooted at, if it does not already exist.
func ensureRoot(resources resource.Store, pipeline *ldp.Pipeline) error {
	ctx := context.Background()
	snap, err := resources.Get(ctx, "/")
	if err != nil {
		return err
	}
	if snap.Exists() {
		return nil
	}
	root := &resource.Resource{Identifier: "/", InteractionModel: resource.BasicContainer}
	return pipeline.Create(ctx, root, rdf.NewDataset(), "")
}

func buildResourceStore(cfg serverConfig) (resource.Store, func(), error) {
	switch cfg.resourceStoreDriver {
	case "couchdb":
		return nil, nil, fmt.Errorf("couchdb resource store requires a configured kivik.DB; wire resource.NewCouchStore in a deployment-specific main")
	default:
		db, err := boltutil.Open(cfg.dataDir + "/resources.db")
		if err != nil {
			return nil, nil, err
		}
		store, err := resource.NewBoltStore(db)
		if err != nil {
			return nil, func() { db.Close() }, err
		}
		return store, func() { db.Close() }, nil
	}
}

func buildBinaryStore(cfg serverConfig) (binary.Store, error) {
	switch cfg.binaryStoreDriver {
	case "s3":
		return nil, fmt.Errorf("s3 binary store requires a configured s3.Client; wire binary.NewS3Store in a deployment-specific main")
	default:
		return binary.NewFilesystemStore(cfg.dataDir+"/binaries", identifier.DefaultBinaryIDSupplier(), nil), nil
	}
}

func buildAuditStore(cfg serverConfig) (audit.Store, func(), error) {
	db, err := boltutil.Open(cfg.dataDir + "/audit.db")
	if err != nil {
		return nil, func() {}, err
	}
	store, err := audit.NewBoltStore(db)
	if err != nil {
		return nil, func() { db.Close() }, err
	}
	return store, func() { db.Close() }, nil
}

func buildWebACCache(cfg serverConfig) (cache.Cache, error) {
	switch cfg.webacCacheDriver {
	case "redis":
		return cache.NewRedisCache(cfg.redisURL, "webac:")
	default:
		return cache.NewInMemoryCache(cfg.webacCacheSize), nil
	}
}

// buildNotificationEmitter wires a best-effort AMQP publisher (spec.md
// §4.9) when an AMQP URL is configured; a deployment that leaves it unset
// runs with notifications disabled, matching Pipeline.New's nil-notifier
// no-op behavior.
func buildNotificationEmitter(cfg serverConfig) (*notification.Emitter, error) {
	if cfg.amqpURL == "" {
		return nil, nil
	}
	return notification.NewEmitter(&queue.RealAMQPDialer{}, cfg.amqpURL, cfg.amqpExchange, cfg.amqpRouteKey)
}
