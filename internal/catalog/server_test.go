package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/invoicer/internal/extraction"
	"github.com/zombor/invoicer/internal/invoice"
	"github.com/zombor/invoicer/internal/scanning"
)

var _ = Describe("Server", func() {
	var (
		db          *mockDB
		storage     *mockStorage
		pipeline    *mockPipeline
		server      *Server
		ghttpServer *ghttp.Server
		now         time.Time
	)

	BeforeEach(func() {
		db = newMockDB()
		storage = newMockStorage()
		pipeline = &mockPipeline{result: sampleResult()}
		now = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	})

	JustBeforeEach(func() {
		service := NewServiceWithDeps(db, storage, pipeline, testConfig(), &mockIDGenerator{ids: []string{"id-1"}}, &mockTimeSource{now: now}, nil)
		server = NewServerWithMux(service, http.NewServeMux(), nil)
		ghttpServer = ghttp.NewServer()
		ghttpServer.AppendHandlers(server.ServeHTTP)
	})

	AfterEach(func() {
		ghttpServer.Close()
	})

	do := func(method, path string, body io.Reader, contentType string) *http.Response {
		req, err := http.NewRequest(method, ghttpServer.URL()+path, body)
		Expect(err).NotTo(HaveOccurred())
		if contentType != "" {
			req.Header.Set("Content-Type", contentType)
		}
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(resp.Body.Close)
		return resp
	}

	upload := func(path, filename string, content []byte) *http.Response {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		part, err := mw.CreateFormFile("file", filename)
		Expect(err).NotTo(HaveOccurred())
		_, err = part.Write(content)
		Expect(err).NotTo(HaveOccurred())
		Expect(mw.Close()).To(Succeed())
		return do(http.MethodPost, path, &buf, mw.FormDataContentType())
	}

	errorMessage := func(resp *http.Response) string {
		var body map[string]string
		Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
		return body["error"]
	}

	Describe("POST /api/invoices", func() {
		It("should create a record", func() {
			resp := upload("/api/invoices", "invoice.pdf", []byte("%PDF"))
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))
			Expect(resp.Header.Get("Content-Type")).To(Equal("application/json"))
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))

			var record Record
			Expect(json.NewDecoder(resp.Body).Decode(&record)).To(Succeed())
			Expect(record.ID).To(Equal("id-1"))
			Expect(record.ContentType).To(Equal("application/pdf"))
			Expect(record.Result.InvoiceMetadata.InvoiceNumber).To(Equal("INV-7"))
			Expect(db.records).To(HaveKey("id-1"))
			Expect(pipeline.configs[0].AIEnabled).To(BeTrue())
		})

		It("should disable AI when asked", func() {
			resp := upload("/api/invoices?ai=false", "invoice.pdf", []byte("%PDF"))
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))
			Expect(pipeline.configs[0].AIEnabled).To(BeFalse())
		})

		It("should reject a malformed ai parameter", func() {
			resp := upload("/api/invoices?ai=maybe", "invoice.pdf", []byte("%PDF"))
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(pipeline.sources).To(BeEmpty())
		})

		It("should reject unsupported files", func() {
			resp := upload("/api/invoices", "invoice.docx", []byte("PK"))
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(errorMessage(resp)).To(ContainSubstring("unsupported file type"))
		})

		It("should require a file", func() {
			var buf bytes.Buffer
			mw := multipart.NewWriter(&buf)
			Expect(mw.WriteField("other", "x")).To(Succeed())
			Expect(mw.Close()).To(Succeed())
			resp := do(http.MethodPost, "/api/invoices", &buf, mw.FormDataContentType())
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(errorMessage(resp)).To(ContainSubstring("No file was selected"))
		})

		When("the file is unreadable", func() {
			BeforeEach(func() {
				pipeline.err = &scanning.UnreadableFileError{Name: "invoice.pdf", Reason: "corrupt PDF"}
			})

			It("should return unprocessable entity", func() {
				resp := upload("/api/invoices", "invoice.pdf", []byte("junk"))
				Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))
				Expect(errorMessage(resp)).To(ContainSubstring("corrupt PDF"))
			})
		})

		When("extraction fails", func() {
			BeforeEach(func() {
				pipeline.err = &extraction.FailedError{Err: &extraction.AIError{Kind: extraction.KindServiceUnavailable, Err: errors.New("quota")}}
			})

			It("should return bad gateway", func() {
				resp := upload("/api/invoices", "invoice.pdf", []byte("%PDF"))
				Expect(resp.StatusCode).To(Equal(http.StatusBadGateway))
				Expect(db.records).To(BeEmpty())
			})
		})
	})

	Describe("POST /api/invoices/test-ai", func() {
		var body map[string]json.RawMessage

		decode := func(resp *http.Response) {
			body = nil
			Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
		}

		BeforeEach(func() {
			pipeline.aiAvailable = true
			forced := sampleResult()
			forced.InvoiceMetadata.InvoiceNumber = "INV-AI"
			pipeline.forcedResult = forced
		})

		It("should return both extractions without storing them", func() {
			resp := upload("/api/invoices/test-ai", "invoice.pdf", []byte("%PDF"))
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			decode(resp)

			var aiResult, regular invoice.Result
			Expect(json.Unmarshal(body["ai_extraction"], &aiResult)).To(Succeed())
			Expect(json.Unmarshal(body["regular_extraction"], &regular)).To(Succeed())
			Expect(aiResult.InvoiceMetadata.InvoiceNumber).To(Equal("INV-AI"))
			Expect(regular.InvoiceMetadata.InvoiceNumber).To(Equal("INV-7"))
			Expect(string(body["ai_available"])).To(Equal("true"))

			var st Status
			Expect(json.Unmarshal(body["ai_config"], &st)).To(Succeed())
			Expect(st.Provider).To(Equal(extraction.ProviderGemini))

			Expect(pipeline.configs[0].FallbackToRegex).To(BeFalse())
			Expect(db.records).To(BeEmpty())
			Expect(storage.files).To(BeEmpty())
		})

		When("the forced AI run fails", func() {
			BeforeEach(func() {
				pipeline.forcedErr = &extraction.FailedError{Err: &extraction.AIError{Kind: extraction.KindServiceUnavailable, Err: errors.New("quota")}}
			})

			It("should report a null AI extraction", func() {
				resp := upload("/api/invoices/test-ai", "invoice.pdf", []byte("%PDF"))
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				decode(resp)
				Expect(string(body["ai_extraction"])).To(Equal("null"))
				Expect(string(body["regular_extraction"])).To(ContainSubstring("INV-7"))
			})
		})

		When("the file is unreadable", func() {
			BeforeEach(func() {
				pipeline.forcedErr = &scanning.UnreadableFileError{Name: "invoice.pdf", Reason: "corrupt PDF"}
			})

			It("should return unprocessable entity", func() {
				resp := upload("/api/invoices/test-ai", "invoice.pdf", []byte("junk"))
				Expect(resp.StatusCode).To(Equal(http.StatusUnprocessableEntity))
				Expect(errorMessage(resp)).To(ContainSubstring("corrupt PDF"))
			})
		})

		It("should reject unsupported files", func() {
			resp := upload("/api/invoices/test-ai", "invoice.docx", []byte("PK"))
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(pipeline.sources).To(BeEmpty())
		})
	})

	Describe("GET /api/invoices", func() {
		BeforeEach(func() {
			db.records["id-1"] = &Record{ID: "id-1", Result: sampleResult(), CreatedAt: now}
		})

		It("should return summaries", func() {
			resp := do(http.MethodGet, "/api/invoices", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var summaries []map[string]any
			Expect(json.NewDecoder(resp.Body).Decode(&summaries)).To(Succeed())
			Expect(summaries).To(HaveLen(1))
			Expect(summaries[0]).To(HaveKeyWithValue("invoice_number", "INV-7"))
			Expect(summaries[0]).To(HaveKeyWithValue("grand_total", 88.0))
		})

		When("the database fails", func() {
			BeforeEach(func() {
				db.listErr = errors.New("boom")
			})

			It("should return an internal error", func() {
				resp := do(http.MethodGet, "/api/invoices", nil, "")
				Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
			})
		})
	})

	Describe("GET /api/invoices/{id}", func() {
		It("should return not found for an unknown id", func() {
			resp := do(http.MethodGet, "/api/invoices/nope", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
			Expect(errorMessage(resp)).To(Equal("Invoice not found"))
		})

		When("the record exists", func() {
			BeforeEach(func() {
				db.records["id-1"] = &Record{ID: "id-1", Result: sampleResult()}
			})

			It("should return the record with the full result", func() {
				resp := do(http.MethodGet, "/api/invoices/id-1", nil, "")
				Expect(resp.StatusCode).To(Equal(http.StatusOK))
				var body map[string]any
				Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
				Expect(body["result"]).To(HaveKey("invoice_metadata"))
				Expect(body["result"]).To(HaveKey("raw_text"))
			})
		})
	})

	Describe("PUT /api/invoices/{id}", func() {
		BeforeEach(func() {
			db.records["id-1"] = &Record{ID: "id-1", Result: sampleResult(), CreatedAt: now, UpdatedAt: now}
		})

		It("should save the edit and keep provenance", func() {
			edited := sampleResult()
			edited.InvoiceMetadata.InvoiceNumber = "INV-7A"
			edited.ExtractionMethod = invoice.MethodRegex
			body, err := json.Marshal(edited)
			Expect(err).NotTo(HaveOccurred())

			resp := do(http.MethodPut, "/api/invoices/id-1", bytes.NewReader(body), "application/json")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(db.records["id-1"].Result.InvoiceMetadata.InvoiceNumber).To(Equal("INV-7A"))
			Expect(db.records["id-1"].Result.ExtractionMethod).To(Equal(invoice.MethodAI))
		})

		It("should reject a body that is not JSON", func() {
			resp := do(http.MethodPut, "/api/invoices/id-1", bytes.NewReader([]byte("nope")), "application/json")
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("DELETE /api/invoices/{id}", func() {
		BeforeEach(func() {
			db.records["id-1"] = &Record{ID: "id-1", Filename: "id-1_a.pdf"}
			storage.files["id-1_a.pdf"] = []byte("x")
		})

		It("should delete the record", func() {
			resp := do(http.MethodDelete, "/api/invoices/id-1", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(db.records).To(BeEmpty())
			Expect(storage.files).To(BeEmpty())
		})
	})

	Describe("GET /api/invoices/{id}/file", func() {
		BeforeEach(func() {
			db.records["id-1"] = &Record{ID: "id-1", Filename: "id-1_a.png", ContentType: "image/png"}
			storage.files["id-1_a.png"] = []byte("png bytes")
		})

		It("should return the upload with its content type", func() {
			resp := do(http.MethodGet, "/api/invoices/id-1/file", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(Equal("image/png"))
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(body).To(Equal([]byte("png bytes")))
		})
	})

	Describe("GET /api/invoices/{id}/json", func() {
		BeforeEach(func() {
			db.records["id-1"] = &Record{ID: "id-1", Result: sampleResult()}
		})

		It("should return the result as an attachment", func() {
			resp := do(http.MethodGet, "/api/invoices/id-1/json", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Disposition")).To(Equal("attachment; filename=invoice_id-1.json"))
			var body map[string]any
			Expect(json.NewDecoder(resp.Body).Decode(&body)).To(Succeed())
			Expect(body).To(HaveKeyWithValue("extraction_method", "ai"))
		})
	})

	Describe("GET /api/invoices/{id}/line-items/export", func() {
		BeforeEach(func() {
			db.records["id-1"] = &Record{ID: "id-1", Result: sampleResult()}
		})

		It("should return a workbook", func() {
			resp := do(http.MethodGet, "/api/invoices/id-1/line-items/export", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(resp.Header.Get("Content-Type")).To(ContainSubstring("spreadsheetml"))
			body, err := io.ReadAll(resp.Body)
			Expect(err).NotTo(HaveOccurred())
			Expect(body[:2]).To(Equal([]byte("PK")))
		})
	})

	Describe("GET /api/invoices/{id}/accounting", func() {
		BeforeEach(func() {
			db.records["id-1"] = &Record{ID: "id-1", Result: sampleResult()}
		})

		It("should return the entries", func() {
			resp := do(http.MethodGet, "/api/invoices/id-1/accounting", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var acc Accounting
			Expect(json.NewDecoder(resp.Body).Decode(&acc)).To(Succeed())
			Expect(acc.Entries).To(HaveLen(3))
			Expect(acc.Entries[2].TaxCode).To(Equal("GST"))
		})
	})

	Describe("GET /api/status", func() {
		It("should report the configuration", func() {
			resp := do(http.MethodGet, "/api/status", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			var st Status
			Expect(json.NewDecoder(resp.Body).Decode(&st)).To(Succeed())
			Expect(st.AIConfigured).To(BeTrue())
			Expect(st.AIAvailable).To(BeFalse())
			Expect(st.Model).To(Equal("gemini-2.0-flash"))
		})
	})

	Describe("OPTIONS preflight", func() {
		It("should answer with CORS headers", func() {
			resp := do(http.MethodOptions, "/api/invoices/id-1", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(resp.Header.Get("Access-Control-Allow-Methods")).To(ContainSubstring("PUT"))
		})
	})

	Describe("GET /health", func() {
		It("should report ok", func() {
			resp := do(http.MethodGet, "/health", nil, "")
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})
})

var _ = Describe("contentTypeFor", func() {
	DescribeTable("guessing types",
		func(filename, declared, want string) {
			Expect(contentTypeFor(filename, declared)).To(Equal(want))
		},
		Entry("declared wins", "a.pdf", "Application/PDF", "application/pdf"),
		Entry("octet stream is replaced", "a.heic", "application/octet-stream", "image/heic"),
		Entry("jpeg by extension", "a.JPG", "", "image/jpeg"),
		Entry("unknown", "a.bin", "", "application/octet-stream"),
	)
})
