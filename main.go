// Fieldforge is the admin-console configuration engine: it stores which
// fields each business module shows, how they are laid out, and how they
// bind to master data, and serves that configuration over HTTP.
package main

import (
	"context"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/openfield-labs/fieldforge/engine"
	"github.com/openfield-labs/fieldforge/modules/bulk"
	"github.com/openfield-labs/fieldforge/modules/fields"
	"github.com/openfield-labs/fieldforge/modules/linked"
	"github.com/openfield-labs/fieldforge/modules/links"
	"github.com/openfield-labs/fieldforge/modules/modregistry"
)

type Config struct {
	HttpAddr string `envDefault:":8080"`

	DBPath string `envDefault:"fieldforge.sqlite3"`

	// TokenKeyFile holds the RSA key used to sign reset confirmations.
	// Generated on first start if absent.
	TokenKeyFile string `envDefault:"reset.pem"`
}

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	})))

	conf, err := env.ParseAsWithOptions[Config](env.Options{Prefix: "FIELDFORGE_", UseFieldNameByDefault: true})
	if err != nil {
		panic(err)
	}

	if len(os.Args) > 1 && os.Args[1] == "healthcheck" {
		err := engine.CheckHealthProbe("http://localhost:8080/healthz") // assume server is running on the default port
		if err != nil {
			panic(err)
		}
		return
	}

	newApp(conf).Run(context.TODO())
}

func newApp(conf Config) *engine.App {
	database, err := engine.OpenDB(conf.DBPath)
	if err != nil {
		panic(err)
	}

	router := engine.NewRouter()
	router.HandleFunc("GET", "/healthz", engine.ServeHealthProbe(database))

	events := engine.NewEventLogger(database)
	catalog := links.DefaultCatalog()
	resetIss := engine.NewTokenIssuer(conf.TokenKeyFile)

	a := engine.NewApp(conf.HttpAddr, router)

	fieldsModule := fields.New(database, events)
	linkedModule := linked.New(database)
	linksModule := links.New(database, catalog, events)

	a.Add(fieldsModule)
	a.Add(linkedModule)
	a.Add(linksModule)
	a.Add(modregistry.New(database, fieldsModule.Store(), linkedModule.Store(), linksModule.Store(), events))
	a.Add(bulk.New(database, catalog, resetIss, events))

	return a
}
