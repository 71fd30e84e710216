package web

import (
	"errors"
	"net/http"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/shelfscan/internal/core"
	"github.com/JonMunkholm/shelfscan/internal/logging"
	"github.com/JonMunkholm/shelfscan/internal/web/templates"
)

// MaxFormBodySize is the maximum accepted form body (64KB).
const MaxFormBodySize = 64 * 1024

// renderPage writes body inside the site layout.
func renderPage(w http.ResponseWriter, r *http.Request, status int, title string, body templ.Component) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := templates.Page(title, body).Render(r.Context(), w); err != nil {
		logging.FromContext(r.Context()).Error("render page", "title", title, "error", err)
	}
}

// handleIndex shows the product backlog.
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	products, err := s.service.ListProducts(r.Context())
	if err != nil {
		s.respondError(w, r, err, http.StatusInternalServerError)
		return
	}
	renderPage(w, r, http.StatusOK, "Products", templates.ProductList(products))
}

// handleScanPage shows the camera scanner.
func (s *Server) handleScanPage(w http.ResponseWriter, r *http.Request) {
	renderPage(w, r, http.StatusOK, "Scan", templates.ScanPage())
}

// handleNewProductPage shows the data-entry form, pre-filled with the
// scanned barcode when one is given.
func (s *Server) handleNewProductPage(w http.ResponseWriter, r *http.Request) {
	view := templates.ProductFormView{
		Values:  core.ProductInput{Barcode: r.URL.Query().Get("barcode")},
		Catalog: s.service.Catalog(),
	}
	renderPage(w, r, http.StatusOK, "Add product", templates.ProductForm(view))
}

// handleSubmitProductForm saves the form and returns to the backlog, or
// re-renders the form with field errors.
func (s *Server) handleSubmitProductForm(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxFormBodySize)
	if err := r.ParseForm(); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			err = errBodyTooLarge
		}
		s.respondError(w, r, err, http.StatusBadRequest)
		return
	}

	in := core.ProductInput{
		Barcode:       r.PostFormValue(core.FieldBarcode),
		ProductName:   r.PostFormValue(core.FieldProductName),
		RetailPrice:   r.PostFormValue(core.FieldRetailPrice),
		Category:      r.PostFormValue(core.FieldCategory),
		UnitOfMeasure: r.PostFormValue(core.FieldUnitOfMeasure),
	}

	ctx := WithRequestMetadata(r.Context(), r)
	if _, err := s.service.CreateProduct(ctx, in); err != nil {
		status := statusFor(err)
		view := templates.ProductFormView{
			Values:  in,
			Errors:  fieldErrors(err),
			Catalog: s.service.Catalog(),
		}
		if view.Errors == nil {
			msg := core.MapError(err)
			view.Alert = &msg
			logging.FromContext(r.Context()).Error("save product from form", "error", err, "code", msg.Code)
		}
		renderPage(w, r, status, "Add product", templates.ProductForm(view))
		return
	}

	http.Redirect(w, r, "/", http.StatusSeeOther)
}
