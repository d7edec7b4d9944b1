package main

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"

	"github.com/hypernova-labs/invoice-service/internal/client"
	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v2"
)

func main() {
	app := &cli.App{
		Name:  "invoicectl",
		Usage: "build invoices, save them to the invoice service and render PDFs",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "api",
				Value:   "http://localhost:10000",
				Usage:   "invoice service base URL",
				EnvVars: []string{"INVOICE_API_URL"},
			},
			&cli.StringFlag{
				Name:    "home",
				Value:   defaultHome(),
				Usage:   "directory holding the session and preferences",
				EnvVars: []string{"INVOICECTL_HOME"},
			},
			&cli.DurationFlag{Name: "timeout", Value: client.DefaultTimeout, Usage: "per-request timeout"},
			&cli.BoolFlag{Name: "debug", Usage: "verbose logging to stderr"},
			&cli.BoolFlag{Name: "yes", Aliases: []string{"y"}, Usage: "answer yes to every confirmation"},
		},
		Before: setup,
		After:  teardown,
		Commands: []*cli.Command{
			{
				Name:  "signup",
				Usage: "create an account and log in",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "name"},
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "password", Required: true, EnvVars: []string{"INVOICECTL_PASSWORD"}},
				},
				Action: signupCmd,
			},
			{
				Name:  "login",
				Usage: "log in and keep the token",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "email", Required: true},
					&cli.StringFlag{Name: "password", Required: true, EnvVars: []string{"INVOICECTL_PASSWORD"}},
				},
				Action: loginCmd,
			},
			{Name: "logout", Usage: "forget the stored token", Action: logoutCmd},
			{Name: "new", Usage: "start a new draft with the next invoice number", Action: newCmd},
			{
				Name:      "set",
				Usage:     "set a draft field (invoiceNumber, companyName, companyLogo, signature, customerName, customerAddress, date, taxRate)",
				ArgsUsage: "<field> <value>",
				Action:    setCmd,
			},
			{
				Name:  "item",
				Usage: "edit line items",
				Subcommands: []*cli.Command{
					{Name: "add", Usage: "append an empty line", Action: itemAddCmd},
					{Name: "set", ArgsUsage: "<n> <name> <quantity> <price>", Usage: "replace line n (1-based)", Action: itemSetCmd},
					{Name: "rm", ArgsUsage: "<n>", Usage: "remove line n (1-based)", Action: itemRemoveCmd},
				},
			},
			{Name: "show", Usage: "print the draft and its totals", Action: showCmd},
			{
				Name:      "pref",
				Usage:     "set a cached preference (theme, template)",
				ArgsUsage: "<name> <value>",
				Action:    prefCmd,
			},
			{Name: "list", Usage: "list saved invoices, newest first", Action: listCmd},
			{Name: "load", ArgsUsage: "<id>", Usage: "load a saved invoice into the draft", Action: loadCmd},
			{Name: "save", Usage: "save the draft, asking before overwriting", Action: saveCmd},
			{Name: "delete", ArgsUsage: "<id>", Usage: "delete a saved invoice", Action: deleteCmd},
			{
				Name:      "download",
				ArgsUsage: "<id>",
				Usage:     "download a saved invoice as JSON",
				Flags:     []cli.Flag{&cli.StringFlag{Name: "out", Value: "."}},
				Action:    downloadCmd,
			},
			{Name: "regenerate", ArgsUsage: "<id>", Usage: "re-render the server PDF", Action: regenerateCmd},
			{
				Name:      "email",
				ArgsUsage: "<id>",
				Usage:     "email the PDF link of a saved invoice",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "to", Required: true},
					&cli.StringFlag{Name: "subject"},
					&cli.StringFlag{Name: "body"},
				},
				Action: emailCmd,
			},
			{
				Name:  "pdf",
				Usage: "render the draft preview to a PDF locally",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "template", Usage: "modern, clean, professional, creative or minimalist"},
					&cli.StringFlag{Name: "out", Value: "."},
					&cli.StringFlag{Name: "chrome", EnvVars: []string{"CHROME_PATH"}, Usage: "Chrome executable"},
				},
				Action: pdfCmd,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func defaultHome() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".invoicectl"
	}
	return filepath.Join(home, ".invoicectl")
}

// env lo comparten todos los comandos de una ejecución
type env struct {
	api       *client.Client
	kv        *client.FileKV
	session   *client.Session
	resolver  *client.Resolver
	confirmer client.Confirmer
	logger    *logrus.Logger
}

const envKey = "env"

func setup(c *cli.Context) error {
	logger := logrus.New()
	logger.SetOutput(os.Stderr)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	logger.SetLevel(logrus.WarnLevel)
	if c.Bool("debug") {
		logger.SetLevel(logrus.DebugLevel)
	}

	kv, err := client.OpenFileKV(filepath.Join(c.String("home"), "state.json"))
	if err != nil {
		return fmt.Errorf("opening state: %w", err)
	}

	var confirmer client.Confirmer = client.NewPromptConfirmer(os.Stdin, os.Stdout)
	if c.Bool("yes") {
		confirmer = client.AutoConfirmer(true)
	}

	api := client.New(c.String("api"), "").WithHTTPClient(&http.Client{Timeout: c.Duration("timeout")})
	c.App.Metadata = map[string]any{envKey: &env{
		api:       api,
		kv:        kv,
		session:   client.OpenSession(kv, api),
		resolver:  client.NewResolver(api, confirmer, logger),
		confirmer: confirmer,
		logger:    logger,
	}}
	return nil
}

func teardown(c *cli.Context) error {
	if e, ok := c.App.Metadata[envKey].(*env); ok {
		return e.kv.Close()
	}
	return nil
}

func envFrom(c *cli.Context) *env {
	return c.App.Metadata[envKey].(*env)
}
