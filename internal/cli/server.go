package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"fge-test-platform/internal/app"
	"fge-test-platform/internal/auth"
	"fge-test-platform/internal/config"
	"fge-test-platform/internal/domain"
	"fge-test-platform/internal/infra/memory"
	"fge-test-platform/internal/infra/postgres"
	redisstore "fge-test-platform/internal/infra/redis"
	transport "fge-test-platform/internal/transport/http"
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

// NewStartCmd builds the CLI subcommand to start the server.
func NewStartCmd(configPath, port *string) *cobra.Command {
	return &cobra.Command{
		Use:   "start",
		Short: "Start the question API and signal relay",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServer(cmd.Context(), *configPath, *port)
		},
	}
}

func runServer(ctx context.Context, configPath, portFlag string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if cfg.Postgres.URL != "" {
		if err := runMigrationsWithConfig(ctx, cfg); err != nil {
			return err
		}
	}

	finalPort := portFlag
	if finalPort == "" {
		finalPort = cfg.Server.Port
	}
	if finalPort == "" {
		finalPort = "8080"
	}

	redisClient := newRedisClient(cfg)

	var (
		loader  memory.QuestionLoader = memory.NewStaticQuestionLoader(sampleQuestions())
		results app.ResultRepository  = memory.NewResultStore()
	)
	if cfg.Postgres.URL != "" {
		pool, err := pgxpool.Connect(ctx, cfg.Postgres.URL)
		if err != nil {
			return err
		}
		defer pool.Close()
		loader = postgres.NewQuestionLoader(pool)

		db, err := openBun(cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		results = postgres.NewResultStore(db)
	}

	quizTTL := config.TTLDuration(cfg.Quiz.TTL, 10*time.Minute)
	var questions app.QuestionRepository
	if redisClient != nil {
		questions = redisstore.NewQuestionRepository(redisClient, loader, quizTTL)
	} else {
		questions = memory.NewQuestionRepository(loader, quizTTL)
	}

	var stores transport.StoreFactory
	if redisClient != nil {
		stores = func(origin string) app.SignalStore {
			return redisstore.NewSignalStore(redisClient, origin)
		}
	} else {
		hub := memory.NewHub()
		stores = func(origin string) app.SignalStore {
			return hub.Context(origin)
		}
	}

	secret := cfg.Auth.Secret
	if secret == "" {
		return fmt.Errorf("auth secret not configured")
	}
	authSvc := auth.NewAuthService(secret, config.TTLDuration(cfg.Auth.TokenTTL, 24*time.Hour))
	service := app.NewQuizService(questions, results)

	router := transport.NewRouter(service, authSvc, transport.NewSignalRelay(stores), transport.RouterOptions{
		AllowedOrigins: cfg.Server.AllowedOrigins,
		EnableGuest:    cfg.Auth.Guest,
	})

	server := &http.Server{
		Addr:        ":" + finalPort,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Printf("starting fge api on :%s", finalPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Println("shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if redisClient != nil {
			defer redisClient.Close()
		}
		return server.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

// sampleQuestions seeds one small bank per category for running without Postgres.
func sampleQuestions() []domain.Question {
	type seed struct {
		category, text, textFr string
		options                [4]string
		correct                string
	}
	seeds := []seed{
		{"IDENT1", "Which colour is the French flag's left stripe?", "Quelle est la couleur de la bande gauche du drapeau français ?", [4]string{"Blue", "White", "Red", "Green"}, "A"},
		{"IDENT1", "What is the capital of France?", "Quelle est la capitale de la France ?", [4]string{"Lyon", "Paris", "Marseille", "Lille"}, "B"},
		{"IDENT1", "What is the national motto?", "Quelle est la devise nationale ?", [4]string{"Dieu et mon droit", "E pluribus unum", "Liberté, Égalité, Fraternité", "Einigkeit und Recht"}, "C"},
		{"IDENT2", "In which year was the Fifth Republic founded?", "En quelle année la Ve République a-t-elle été fondée ?", [4]string{"1946", "1968", "1981", "1958"}, "D"},
		{"IDENT2", "Who stormed the Bastille?", "Qui a pris la Bastille ?", [4]string{"Parisians", "Prussians", "Bretons", "Normans"}, "A"},
		{"IDENT3", "How long is the presidential term?", "Quelle est la durée du mandat présidentiel ?", [4]string{"4 years", "5 years", "6 years", "7 years"}, "B"},
		{"IDENT3", "Who appoints the Prime Minister?", "Qui nomme le Premier ministre ?", [4]string{"The Senate", "The people", "The President", "The Assembly"}, "C"},
		{"IDENT4", "What is the national anthem?", "Quel est l'hymne national ?", [4]string{"La Marseillaise", "Le Chant du départ", "Ça ira", "La Carmagnole"}, "A"},
		{"IDENT4", "What date is the national holiday?", "Quelle est la date de la fête nationale ?", [4]string{"1 May", "8 May", "11 November", "14 July"}, "D"},
		{"IDENT5", "Which river flows through Paris?", "Quel fleuve traverse Paris ?", [4]string{"Loire", "Seine", "Rhône", "Garonne"}, "B"},
		{"IDENT5", "Which mountain range borders Spain?", "Quelle chaîne de montagnes borde l'Espagne ?", [4]string{"Alps", "Vosges", "Pyrenees", "Jura"}, "C"},
	}

	out := make([]domain.Question, 0, len(seeds))
	for i, s := range seeds {
		out = append(out, domain.Question{
			ID:     fmt.Sprintf("%d", i+1),
			Text:   s.text,
			TextFr: s.textFr,
			Options: map[string]string{
				"A": s.options[0],
				"B": s.options[1],
				"C": s.options[2],
				"D": s.options[3],
			},
			CorrectAnswer: s.correct,
			ImageURL:      fmt.Sprintf("/uploads/sample-%d.png", i+1),
			Category:      s.category,
			Difficulty:    "easy",
		})
	}
	return out
}
