package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/gin-gonic/gin"

	"tender-backend/internal/analysis"
	"tender-backend/internal/checklists"
	"tender-backend/internal/documents"
	"tender-backend/internal/extract"
	"tender-backend/internal/llm"
	anthropicllm "tender-backend/internal/llm/anthropic"
	"tender-backend/internal/notify"
	"tender-backend/internal/shared/config"
	"tender-backend/internal/shared/server"
	"tender-backend/internal/shared/storage/db"
	"tender-backend/internal/shared/storage/object"
	localstore "tender-backend/internal/shared/storage/object/local"
	s3store "tender-backend/internal/shared/storage/object/s3"
)

// App holds shared dependencies.
type App struct {
	Config config.Config
	Router *gin.Engine
	DB     *sql.DB
	Store  object.ObjectStore
	Events *notify.Broadcaster

	DocumentsRepo  documents.DocumentsRepo
	ChecklistsRepo checklists.Repo
	AnalysisRepo   analysis.Repo

	DocumentsService  *documents.Service
	ChecklistsService *checklists.Service
	AnalysisService   *analysis.Service
	Scheduler         *analysis.Scheduler

	DocumentsHandler  *documents.Handler
	ChecklistsHandler *checklists.Handler
	AnalysisHandler   *analysis.Handler
	NotifyHandler     *notify.Handler
}

// Build prepares shared dependencies, wires the router, and starts the
// scheduler workers. Callers own shutdown via app.Scheduler.Stop.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	store, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config: cfg,
		DB:     sqlDB,
		Store:  store,
		Events: notify.NewBroadcaster(),
	}

	if err := buildServices(app); err != nil {
		return nil, err
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:            app.Config,
		DocumentsHandler:  app.DocumentsHandler,
		ChecklistsHandler: app.ChecklistsHandler,
		AnalysisHandler:   app.AnalysisHandler,
		NotifyHandler:     app.NotifyHandler,
	})

	app.Scheduler.Start(ctx)

	return app, nil
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if isDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}

	if err := db.RunMigrations(ctx, sqlDB); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (object.ObjectStore, error) {
	switch strings.ToLower(strings.TrimSpace(cfg.ObjectStoreType)) {
	case "s3":
		return s3store.New(ctx, cfg.AWSRegion, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.LocalStoreDir), nil
	}
}

func isDevLike(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "dev", "local":
		return true
	default:
		return false
	}
}

func buildServices(app *App) error {
	if app.DB != nil {
		app.DocumentsRepo = &documents.PGRepo{DB: app.DB}
		app.ChecklistsRepo = &checklists.PGRepo{DB: app.DB}
		app.AnalysisRepo = &analysis.PGRepo{DB: app.DB}
	} else {
		app.DocumentsRepo = documents.NewMemoryRepo()
		app.ChecklistsRepo = checklists.NewMemoryRepo()
		app.AnalysisRepo = analysis.NewMemoryRepo()
	}

	app.DocumentsService = &documents.Service{Store: app.Store, Repo: app.DocumentsRepo}
	app.ChecklistsService = &checklists.Service{Repo: app.ChecklistsRepo}

	llmClient := llm.Client(llm.PlaceholderClient{})
	if strings.TrimSpace(app.Config.AnthropicAPIKey) != "" {
		client, err := anthropicllm.New(app.Config.AnthropicAPIKey, app.Config.AIModel)
		if err != nil {
			return err
		}
		llmClient = client
	} else {
		log.Printf("bootstrap: ANTHROPIC_API_KEY empty; evaluations will be error-marked")
	}

	aggregator := &analysis.Aggregator{Repo: app.AnalysisRepo}
	runner := &analysis.Runner{
		Repo:            app.AnalysisRepo,
		Aggregator:      aggregator,
		Extractor:       &extract.StoreExtractor{Store: app.Store},
		LLM:             llmClient,
		Events:          app.Events,
		EvaluateTimeout: app.Config.EvaluateTimeout,
	}
	app.Scheduler = analysis.NewScheduler(app.Config.WorkerPoolSize, runner, app.AnalysisRepo, app.Events)

	app.AnalysisService = &analysis.Service{
		Repo:       app.AnalysisRepo,
		Aggregator: aggregator,
		Scheduler:  app.Scheduler,
		Checklists: checklistSource{svc: app.ChecklistsService},
		Documents:  documentSource{svc: app.DocumentsService},
		AIModel:    app.Config.AIModel,
	}

	app.DocumentsHandler = documents.NewHandler(app.DocumentsService)
	app.ChecklistsHandler = checklists.NewHandler(app.ChecklistsService)
	app.AnalysisHandler = analysis.NewHandler(app.AnalysisService)
	app.NotifyHandler = notify.NewHandler(app.Events)

	return nil
}

// checklistSource adapts the checklists service to the engine's read model.
type checklistSource struct {
	svc *checklists.Service
}

func (s checklistSource) GetChecklist(ctx context.Context, userId, checklistID string) (analysis.ChecklistRef, error) {
	cl, err := s.svc.Get(ctx, userId, checklistID)
	if err != nil {
		if errors.Is(err, checklists.ErrNotFound) {
			return analysis.ChecklistRef{}, analysis.ErrNotFound
		}
		return analysis.ChecklistRef{}, err
	}
	ref := analysis.ChecklistRef{ID: cl.ID, Items: make([]analysis.ChecklistItemRef, 0, len(cl.Items))}
	for _, item := range cl.Items {
		ref.Items = append(ref.Items, analysis.ChecklistItemRef{
			ID:       item.ID,
			Kind:     analysis.ItemKind(item.Kind),
			Text:     item.Text,
			Position: item.Position,
		})
	}
	return ref, nil
}

// documentSource adapts the documents service to the engine's read model.
type documentSource struct {
	svc *documents.Service
}

func (s documentSource) GetDocument(ctx context.Context, userId, documentID string) (analysis.DocumentRef, error) {
	doc, err := s.svc.Get(ctx, userId, documentID)
	if err != nil {
		if errors.Is(err, documents.ErrNotFound) {
			return analysis.DocumentRef{}, analysis.ErrNotFound
		}
		return analysis.DocumentRef{}, err
	}
	return analysis.DocumentRef{
		ID:         doc.ID,
		FileName:   doc.FileName,
		MimeType:   doc.MimeType,
		StorageKey: doc.StorageKey,
	}, nil
}
