package main

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/hypernova-labs/invoice-service/internal/client"
	"github.com/hypernova-labs/invoice-service/internal/email"
	"github.com/hypernova-labs/invoice-service/internal/models"
	"github.com/hypernova-labs/invoice-service/internal/preview"
	"github.com/shopspring/decimal"
	"github.com/urfave/cli/v2"
)

const promptLogout = "Are you sure you want to logout?"

func signupCmd(c *cli.Context) error {
	e := envFrom(c)
	user, err := e.session.Signup(c.Context, c.String("name"), c.String("email"), c.String("password"))
	if err != nil {
		return cli.Exit(client.ServerMessage(err, "Signup failed"), 1)
	}
	fmt.Fprintf(c.App.Writer, "Signed up as %s\n", user.Email)
	return nil
}

func loginCmd(c *cli.Context) error {
	e := envFrom(c)
	user, err := e.session.Login(c.Context, c.String("email"), c.String("password"))
	if err != nil {
		return cli.Exit(client.ServerMessage(err, "Login failed"), 1)
	}
	fmt.Fprintf(c.App.Writer, "Logged in as %s\n", user.Email)
	return nil
}

func logoutCmd(c *cli.Context) error {
	e := envFrom(c)
	if !e.session.LoggedIn() {
		fmt.Fprintln(c.App.Writer, "Not logged in")
		return nil
	}
	if !e.confirmer.Confirm(c.Context, promptLogout) {
		return nil
	}
	if err := e.session.Logout(c.Context); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, "Logged out")
	return nil
}

// loadSet exige sesión y recarga la lista de facturas del usuario
func loadSet(ctx context.Context, e *env) error {
	if !e.session.LoggedIn() {
		return cli.Exit("Please log in first", 1)
	}
	if err := e.resolver.Refresh(ctx); err != nil {
		return cli.Exit(client.ServerMessage(err, "Failed to fetch invoices"), 1)
	}
	return nil
}

func currentDraft(c *cli.Context, e *env) (client.Draft, error) {
	d, err := e.session.Draft(time.Now(), len(e.resolver.Set()))
	if errors.Is(err, models.ErrUnauthorized) {
		return d, cli.Exit("Please log in first", 1)
	}
	return d, err
}

func newCmd(c *cli.Context) error {
	e := envFrom(c)
	if err := loadSet(c.Context, e); err != nil {
		return err
	}
	d, err := e.session.ResetDraft(c.Context, time.Now(), len(e.resolver.Set()))
	if err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "New draft %s\n", d.InvoiceNumber)
	return nil
}

func setCmd(c *cli.Context) error {
	if c.Args().Len() != 2 {
		return cli.Exit("usage: set <field> <value>", 2)
	}
	e := envFrom(c)
	d, err := currentDraft(c, e)
	if err != nil {
		return err
	}
	prefs, err := e.session.Preferences()
	if err != nil {
		return err
	}

	field, value := c.Args().Get(0), c.Args().Get(1)
	switch field {
	case "invoiceNumber":
		d.InvoiceNumber = value
	case "companyName":
		d.CompanyName = value
		err = prefs.Put(c.Context, client.PrefCompanyName, value)
	case "companyLogo", "signature":
		src, ierr := imageValue(value)
		if ierr != nil {
			return ierr
		}
		if field == "companyLogo" {
			d.CompanyLogo = src
			err = prefs.Put(c.Context, client.PrefCompanyLogo, src)
		} else {
			d.Signature = src
			err = prefs.Put(c.Context, client.PrefSignature, src)
		}
	case "customerName":
		d.CustomerName = value
	case "customerAddress":
		d.CustomerAddress = strings.ReplaceAll(value, `\n`, "\n")
	case "date":
		if _, perr := time.Parse(models.DateLayout, value); perr != nil {
			return cli.Exit("date must be YYYY-MM-DD", 2)
		}
		d.Date = value
	case "taxRate":
		rate, perr := strconv.ParseFloat(value, 64)
		if perr != nil {
			return cli.Exit("taxRate must be a number", 2)
		}
		d.TaxRate = rate
	default:
		return cli.Exit(fmt.Sprintf("unknown field %q", field), 2)
	}
	if err != nil {
		return err
	}
	return e.session.PutDraft(c.Context, d)
}

// imageValue convierte una ruta de archivo en data URI. URLs y data URIs pasan
// sin cambios y "-" borra la imagen.
func imageValue(value string) (string, error) {
	switch {
	case value == "-":
		return "", nil
	case strings.HasPrefix(value, "data:"), strings.HasPrefix(value, "http://"), strings.HasPrefix(value, "https://"):
		return value, nil
	}
	raw, err := os.ReadFile(value)
	if err != nil {
		return "", fmt.Errorf("reading image: %w", err)
	}
	mime := http.DetectContentType(raw)
	if !strings.HasPrefix(mime, "image/") {
		return "", cli.Exit(fmt.Sprintf("%s is not an image (%s)", value, mime), 2)
	}
	return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(raw), nil
}

func itemAddCmd(c *cli.Context) error {
	e := envFrom(c)
	d, err := currentDraft(c, e)
	if err != nil {
		return err
	}
	d.AddItem(time.Now())
	return e.session.PutDraft(c.Context, d)
}

func itemSetCmd(c *cli.Context) error {
	if c.Args().Len() != 4 {
		return cli.Exit("usage: item set <n> <name> <quantity> <price>", 2)
	}
	n, err1 := strconv.Atoi(c.Args().Get(0))
	qty, err2 := strconv.ParseFloat(c.Args().Get(2), 64)
	price, err3 := strconv.ParseFloat(c.Args().Get(3), 64)
	if err := errors.Join(err1, err2, err3); err != nil {
		return cli.Exit(fmt.Sprintf("invalid item: %v", err), 2)
	}

	e := envFrom(c)
	d, err := currentDraft(c, e)
	if err != nil {
		return err
	}
	if err := d.ReplaceItem(n-1, models.LineItem{Name: c.Args().Get(1), Quantity: qty, Price: price}); err != nil {
		return cli.Exit(err.Error(), 2)
	}
	return e.session.PutDraft(c.Context, d)
}

func itemRemoveCmd(c *cli.Context) error {
	n, err := strconv.Atoi(c.Args().First())
	if err != nil {
		return cli.Exit("usage: item rm <n>", 2)
	}
	e := envFrom(c)
	d, err := currentDraft(c, e)
	if err != nil {
		return err
	}
	if err := d.RemoveItem(n - 1); err != nil {
		return cli.Exit(err.Error(), 2)
	}
	return e.session.PutDraft(c.Context, d)
}

func money(v float64) string {
	return decimal.NewFromFloat(v).StringFixed(2)
}

func showCmd(c *cli.Context) error {
	e := envFrom(c)
	d, err := currentDraft(c, e)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Invoice\t%s\n", d.InvoiceNumber)
	fmt.Fprintf(w, "Draft id\t%s\n", d.ID)
	fmt.Fprintf(w, "Company\t%s\n", d.CompanyName)
	fmt.Fprintf(w, "Customer\t%s\n", d.CustomerName)
	fmt.Fprintf(w, "Address\t%s\n", strings.ReplaceAll(d.CustomerAddress, "\n", ", "))
	fmt.Fprintf(w, "Date\t%s\n", d.Date)
	fmt.Fprintf(w, "Logo\t%t\n", d.CompanyLogo != "")
	fmt.Fprintf(w, "Signature\t%t\n\n", d.Signature != "")
	fmt.Fprintln(w, "#\tItem\tQty\tPrice\tTotal")
	for i, item := range d.Items {
		fmt.Fprintf(w, "%d\t%s\t%v\t%s\t%s\n", i+1, item.Name, item.Quantity, money(item.Price), money(item.Quantity*item.Price))
	}
	totals := d.Totals()
	fmt.Fprintf(w, "\n\tSubtotal\t\t\t%s\n", money(totals.Subtotal))
	fmt.Fprintf(w, "\tTax (%v%%)\t\t\t%s\n", d.TaxRate, money(totals.TaxAmount))
	fmt.Fprintf(w, "\tTotal\t\t\t%s\n", money(totals.Total))
	return w.Flush()
}

func prefCmd(c *cli.Context) error {
	if c.Args().Len() != 2 {
		return cli.Exit("usage: pref <theme|template> <value>", 2)
	}
	e := envFrom(c)
	prefs, err := e.session.Preferences()
	if err != nil {
		return cli.Exit("Please log in first", 1)
	}

	name, value := c.Args().Get(0), c.Args().Get(1)
	switch name {
	case client.PrefTheme:
		if value != "light" && value != "dark" {
			return cli.Exit("theme must be light or dark", 2)
		}
	case client.PrefTemplate:
		if _, err := preview.ParseTemplate(value); err != nil {
			return cli.Exit(err.Error(), 2)
		}
	default:
		return cli.Exit(fmt.Sprintf("unknown preference %q", name), 2)
	}
	return prefs.Put(c.Context, name, value)
}

func listCmd(c *cli.Context) error {
	e := envFrom(c)
	if err := loadSet(c.Context, e); err != nil {
		return err
	}

	w := tabwriter.NewWriter(c.App.Writer, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNumber\tCustomer\tDate\tTotal\tPDF")
	for _, inv := range e.resolver.Set() {
		link := "-"
		if inv.FileLink != nil {
			link = e.api.FileURL(*inv.FileLink)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", inv.ID, inv.InvoiceNumber, inv.CustomerName, inv.Date, money(inv.Amount), link)
	}
	return w.Flush()
}

func parseID(c *cli.Context) (uuid.UUID, error) {
	id, err := uuid.Parse(c.Args().First())
	if err != nil {
		return uuid.Nil, cli.Exit("usage: "+c.Command.Name+" <id>", 2)
	}
	return id, nil
}

func loadCmd(c *cli.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	e := envFrom(c)
	if !e.session.LoggedIn() {
		return cli.Exit("Please log in first", 1)
	}
	inv, err := e.api.Get(c.Context, id)
	if err != nil {
		return cli.Exit(client.ServerMessage(err, "Failed to load invoice"), 1)
	}
	if err := e.session.PutDraft(c.Context, client.FromInvoice(inv)); err != nil {
		return err
	}
	fmt.Fprintf(c.App.Writer, "Loaded %s\n", inv.InvoiceNumber)
	return nil
}

func saveCmd(c *cli.Context) error {
	e := envFrom(c)
	if err := loadSet(c.Context, e); err != nil {
		return err
	}
	d, err := currentDraft(c, e)
	if err != nil {
		return err
	}

	out, err := e.resolver.Save(c.Context, d)
	fmt.Fprintln(c.App.Writer, out.Message)
	if err != nil && !out.Saved {
		return cli.Exit("", 1)
	}
	if err != nil {
		e.logger.WithError(err).Warn("Invoice list may be stale")
	}
	if out.Invoice != nil && out.Invoice.FileLink == nil {
		fmt.Fprintln(c.App.Writer, "PDF not generated on the server; run regenerate to retry")
	}
	return nil
}

func deleteCmd(c *cli.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	e := envFrom(c)
	if err := loadSet(c.Context, e); err != nil {
		return err
	}

	deleted, msg, err := e.resolver.Delete(c.Context, id)
	if err != nil && !deleted {
		return cli.Exit(msg, 1)
	}
	if !deleted {
		return nil
	}

	d, derr := currentDraft(c, e)
	if derr == nil && d.ID == id.String() {
		if _, err := e.session.ResetDraft(c.Context, time.Now(), len(e.resolver.Set())); err != nil {
			return err
		}
	}
	fmt.Fprintln(c.App.Writer, "Deleted")
	return err
}

func downloadCmd(c *cli.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	e := envFrom(c)
	data, name, err := e.api.Download(c.Context, id)
	if err != nil {
		return cli.Exit(client.ServerMessage(err, "Download failed"), 1)
	}
	path := filepath.Join(c.String("out"), filepath.Base(name))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, path)
	return nil
}

func regenerateCmd(c *cli.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	e := envFrom(c)
	inv, queued, err := e.api.RegeneratePDF(c.Context, id)
	if err != nil {
		return cli.Exit(client.ServerMessage(err, "PDF generation failed"), 1)
	}
	if queued {
		fmt.Fprintln(c.App.Writer, "PDF regeneration queued")
		return nil
	}
	if inv.FileLink != nil {
		fmt.Fprintln(c.App.Writer, e.api.FileURL(*inv.FileLink))
	}
	return nil
}

func emailCmd(c *cli.Context) error {
	id, err := parseID(c)
	if err != nil {
		return err
	}
	e := envFrom(c)
	msg := email.Message{To: c.String("to"), Subject: c.String("subject"), Body: c.String("body")}
	if err := e.api.SendEmail(c.Context, id, msg); err != nil {
		return cli.Exit(client.ServerMessage(err, "Failed to send email"), 1)
	}
	fmt.Fprintln(c.App.Writer, "Email sent")
	return nil
}

func pdfCmd(c *cli.Context) error {
	e := envFrom(c)
	d, err := currentDraft(c, e)
	if err != nil {
		return err
	}

	name := c.String("template")
	if name == "" {
		if prefs, perr := e.session.Preferences(); perr == nil {
			name = prefs.String(client.PrefTemplate, "")
		}
	}
	tpl, err := preview.ParseTemplate(name)
	if err != nil {
		return cli.Exit(err.Error(), 2)
	}
	html, err := preview.BuildHTML(d, tpl)
	if err != nil {
		return err
	}

	doc, err := preview.OpenBrowserDocument(c.Context, html, c.String("chrome"))
	if err != nil {
		return cli.Exit(fmt.Sprintf("PDF generation error: %v", err), 1)
	}
	defer doc.Close()

	pipeline := preview.NewPipeline(e.logger).WithObserver(func(s preview.State) {
		e.logger.WithField("state", s.String()).Info("PDF pipeline")
	})
	pdf, err := pipeline.Render(c.Context, doc)
	if err != nil {
		return cli.Exit("PDF generation failed, try again", 1)
	}

	path, err := preview.Save(c.String("out"), time.Now(), pdf)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, path)
	return nil
}
