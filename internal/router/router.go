package router

import (
	"net/http"

	"medication-adherence/internal/adapters/explainer/template"
	mem "medication-adherence/internal/adapters/storage/memory"
	"medication-adherence/internal/agent"
	"medication-adherence/internal/domain/adherence"
	"medication-adherence/internal/domain/events"
	"medication-adherence/internal/domain/patients"
	"medication-adherence/internal/middleware"
	"medication-adherence/internal/platform/logger"
	"medication-adherence/internal/ports/auth"
	"medication-adherence/internal/ports/notify"

	_ "medication-adherence/docs"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"
)

type Options struct {
	AuthVerifier auth.AuthVerifier // puede ser nil (modo dev)
	Logger       logger.Logger
	CORSOrigins  []string
	// Dispatcher recibe las acciones de los ticks pedidos por API.
	Dispatcher notify.Dispatcher

	// Servicios ya cableados. Si falta alguno se arma todo in-memory.
	Patients  *patients.Service
	Events    *events.Service
	Adherence *adherence.Service
}

// Services agrupa los servicios que expone la API.
type Services struct {
	Patients  *patients.Service
	Events    *events.Service
	Adherence *adherence.Service
}

// MemoryServices arma los tres servicios sobre stores in-memory y engancha
// el alta/edición de pacientes con el estado del engine.
func MemoryServices(opts adherence.Options) Services {
	eventsSvc := events.NewService(mem.NewEventRepo())
	if opts.Audit == nil {
		opts.Audit = eventsSvc
	}
	if opts.Explainer == nil {
		opts.Explainer = template.New()
	}
	s := Services{
		Patients:  patients.NewService(mem.NewPatientRepo()),
		Events:    eventsSvc,
		Adherence: adherence.NewService(mem.NewStateStore(), opts),
	}
	Link(s.Patients, s.Adherence)
	return s
}

// Link sincroniza el estado del engine con el perfil del paciente.
func Link(p *patients.Service, a *adherence.Service) {
	p.OnCreate(a.SyncPatient)
	p.OnUpdate(a.SyncPatient)
}

func NewRouter(opts Options) http.Handler {
	log := opts.Logger
	if log == nil {
		log = logger.Nop()
	}

	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)

	origins := opts.CORSOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", middleware.DebugUserHeader},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))

	r.Use(middleware.AuthContext(opts.AuthVerifier))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/swagger/*", httpSwagger.Handler(httpSwagger.URL("/swagger/doc.json")))

	svcs := Services{Patients: opts.Patients, Events: opts.Events, Adherence: opts.Adherence}
	if svcs.Patients == nil || svcs.Events == nil || svcs.Adherence == nil {
		log.Warn("router: services missing, using in-memory stores", nil)
		svcs = MemoryServices(adherence.Options{Logger: log})
	}

	// Rutas por módulo
	patients.RegisterRoutes(r, svcs.Patients)
	events.RegisterRoutes(r, svcs.Events, svcs.Patients)
	ticker := agent.New(svcs.Adherence, agent.Options{Logger: log, Dispatcher: opts.Dispatcher})
	adherence.RegisterRoutes(r, svcs.Adherence, svcs.Patients, ticker)

	return r
}
