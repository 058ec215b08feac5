package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"os"
	"testing"

	"github.com/nafeskey/shop-go/internal/testutil"
)

// imageUpload builds a multipart file and header the way an HTTP handler
// would receive them.
func imageUpload(t *testing.T, filename, contentType string, data []byte) (multipart.File, *multipart.FileHeader) {
	t.Helper()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename="%s"`, filename))
	h.Set("Content-Type", contentType)
	part, err := mw.CreatePart(h)
	if err != nil {
		t.Fatalf("creating form part: %v", err)
	}
	if _, err := part.Write(data); err != nil {
		t.Fatalf("writing form part: %v", err)
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("closing multipart writer: %v", err)
	}

	req := httptest.NewRequest(http.MethodPost, "/", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())

	file, header, err := req.FormFile("image")
	if err != nil {
		t.Fatalf("extracting form file: %v", err)
	}
	return file, header
}

func newTestProductService(t *testing.T) (*ProductService, *AssetManager) {
	t.Helper()

	db := testutil.TestDB(t)
	assets := newTestAssetManager(t)
	return NewProductService(db, assets, "General"), assets
}

func validInput() ProductInput {
	return ProductInput{
		Name:        "Widget",
		Price:       "19.95",
		Description: "A fine widget",
		Category:    "Tools",
	}
}

func TestProductServiceCreate(t *testing.T) {
	svc, assets := newTestProductService(t)
	file, header := imageUpload(t, "widget.png", "image/png", pngBytes(t, 32, 32))

	product, err := svc.Create(context.Background(), validInput(), file, header)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	if product.ID == 0 {
		t.Fatal("created product has zero ID")
	}
	if product.Name != "Widget" {
		t.Errorf("Name = %q", product.Name)
	}
	if product.Price != 19.95 {
		t.Errorf("Price = %v", product.Price)
	}
	if product.Category != "Tools" {
		t.Errorf("Category = %q", product.Category)
	}
	if !assets.Exists(product.Image) {
		t.Fatal("product image not stored on disk")
	}

	got, err := svc.Get(context.Background(), product.ID)
	if err != nil {
		t.Fatalf("Get error: %v", err)
	}
	if got.Image != product.Image {
		t.Errorf("Image = %q, want %q", got.Image, product.Image)
	}
}

func TestProductServiceCreate_DefaultCategory(t *testing.T) {
	svc, _ := newTestProductService(t)
	file, header := imageUpload(t, "widget.png", "image/png", pngBytes(t, 16, 16))

	input := validInput()
	input.Category = "  "

	product, err := svc.Create(context.Background(), input, file, header)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if product.Category != "General" {
		t.Errorf("Category = %q, want %q", product.Category, "General")
	}
}

func TestProductServiceCreate_SanitizesMarkup(t *testing.T) {
	svc, _ := newTestProductService(t)
	file, header := imageUpload(t, "widget.png", "image/png", pngBytes(t, 16, 16))

	input := validInput()
	input.Name = "<script>alert(1)</script>Widget"
	input.Description = "Nice <b>bold</b> widget"

	product, err := svc.Create(context.Background(), input, file, header)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}
	if product.Name != "Widget" {
		t.Errorf("Name = %q, markup not stripped", product.Name)
	}
	if product.Description != "Nice bold widget" {
		t.Errorf("Description = %q, markup not stripped", product.Description)
	}
}

func TestProductServiceCreate_RequiresImage(t *testing.T) {
	svc, _ := newTestProductService(t)

	_, err := svc.Create(context.Background(), validInput(), nil, nil)

	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("error = %v, want ValidationError", err)
	}
	if verr.Message != "Image is required" {
		t.Errorf("message = %q", verr.Message)
	}
}

func TestProductServiceCreate_Validation(t *testing.T) {
	svc, _ := newTestProductService(t)

	tests := []struct {
		name    string
		mutate  func(*ProductInput)
		message string
	}{
		{"missing name", func(in *ProductInput) { in.Name = "  " }, "Name is required"},
		{"missing price", func(in *ProductInput) { in.Price = "" }, "Price is required"},
		{"garbage price", func(in *ProductInput) { in.Price = "abc" }, "Price must be a positive number"},
		{"zero price", func(in *ProductInput) { in.Price = "0" }, "Price must be a positive number"},
		{"negative price", func(in *ProductInput) { in.Price = "-5" }, "Price must be a positive number"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			input := validInput()
			tt.mutate(&input)

			file, header := imageUpload(t, "widget.png", "image/png", pngBytes(t, 8, 8))
			_, err := svc.Create(context.Background(), input, file, header)

			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("error = %v, want ValidationError", err)
			}
			if verr.Message != tt.message {
				t.Errorf("message = %q, want %q", verr.Message, tt.message)
			}
		})
	}
}

func TestProductServiceCreate_RejectsBadFileType(t *testing.T) {
	svc, _ := newTestProductService(t)
	file, header := imageUpload(t, "malware.exe", "application/octet-stream", []byte("MZ"))

	_, err := svc.Create(context.Background(), validInput(), file, header)
	if !errors.Is(err, ErrInvalidFileType) {
		t.Fatalf("error = %v, want ErrInvalidFileType", err)
	}

	products, err := svc.List(context.Background())
	if err != nil {
		t.Fatalf("List error: %v", err)
	}
	if len(products) != 0 {
		t.Fatal("rejected upload still inserted a product")
	}
}

func TestProductServiceGet_NotFound(t *testing.T) {
	svc, _ := newTestProductService(t)

	if _, err := svc.Get(context.Background(), 9999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}
}

func TestProductServiceUpdate_ReplacesImage(t *testing.T) {
	svc, assets := newTestProductService(t)
	file, header := imageUpload(t, "before.png", "image/png", pngBytes(t, 16, 16))

	created, err := svc.Create(context.Background(), validInput(), file, header)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	newFile, newHeader := imageUpload(t, "after.png", "image/png", pngBytes(t, 24, 24))
	updated, err := svc.Update(context.Background(), created.ID, validInput(), newFile, newHeader)
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}

	if updated.Image == created.Image {
		t.Fatal("image path unchanged after replacement")
	}
	if !assets.Exists(updated.Image) {
		t.Fatal("new image not on disk")
	}
	if assets.Exists(created.Image) {
		t.Fatal("replaced image still on disk")
	}
}

func TestProductServiceUpdate_KeepsImageWithoutUpload(t *testing.T) {
	svc, assets := newTestProductService(t)
	file, header := imageUpload(t, "only.png", "image/png", pngBytes(t, 16, 16))

	created, err := svc.Create(context.Background(), validInput(), file, header)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	input := validInput()
	input.Name = "Widget renamed"

	updated, err := svc.Update(context.Background(), created.ID, input, nil, nil)
	if err != nil {
		t.Fatalf("Update error: %v", err)
	}

	if updated.Name != "Widget renamed" {
		t.Errorf("Name = %q", updated.Name)
	}
	if updated.Image != created.Image {
		t.Fatalf("Image = %q, want %q preserved", updated.Image, created.Image)
	}
	if !assets.Exists(created.Image) {
		t.Fatal("original image removed by image-less update")
	}
}

func TestProductServiceUpdate_NotFound(t *testing.T) {
	svc, assets := newTestProductService(t)
	file, header := imageUpload(t, "stray.png", "image/png", pngBytes(t, 16, 16))

	_, err := svc.Update(context.Background(), 9999, validInput(), file, header)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("error = %v, want ErrNotFound", err)
	}

	// The missing row is detected before the asset is stored.
	entries, err := os.ReadDir(assets.UploadDir())
	if err != nil {
		t.Fatalf("reading upload dir: %v", err)
	}
	for _, e := range entries {
		if !e.IsDir() {
			t.Errorf("update of missing product left file behind: %s", e.Name())
		}
	}
}

func TestProductServiceDelete(t *testing.T) {
	svc, assets := newTestProductService(t)
	file, header := imageUpload(t, "gone.png", "image/png", pngBytes(t, 16, 16))

	created, err := svc.Create(context.Background(), validInput(), file, header)
	if err != nil {
		t.Fatalf("Create error: %v", err)
	}

	if err := svc.Delete(context.Background(), created.ID); err != nil {
		t.Fatalf("Delete error: %v", err)
	}

	if _, err := svc.Get(context.Background(), created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("product still present, err = %v", err)
	}
	if assets.Exists(created.Image) {
		t.Fatal("image still on disk after delete")
	}

	if err := svc.Delete(context.Background(), created.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("second delete error = %v, want ErrNotFound", err)
	}
}
