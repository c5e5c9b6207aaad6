package receipt_test

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/videlboga/ReceiptScan/internal/pattern"
	"github.com/videlboga/ReceiptScan/internal/receipt"
	"github.com/videlboga/ReceiptScan/internal/rules"
	"github.com/videlboga/ReceiptScan/internal/scanning"
)

// stubScanner returns the same document for every file
type stubScanner struct {
	doc *scanning.Document
}

func (s *stubScanner) Recognize(data []byte, contentType string) (*scanning.Document, error) {
	return s.doc, nil
}

func (s *stubScanner) Close() error {
	return nil
}

const integrationRules = `min_confidence: 50
amount_tolerance: 0.01
valid_phones: ["+7 987 933-55-15"]
valid_amounts: [1500]
valid_accounts: []
valid_cards: ["2200 5904 3190 0533"]
`

var _ = Describe("Integration", func() {
	var (
		tempDir   string
		rulesPath string
		db        receipt.DB
		store     receipt.Storage
		scanner   *stubScanner
		server    *receipt.Server
		ghServer  *ghttp.Server
	)

	BeforeEach(func() {
		tempDir = GinkgoT().TempDir()

		var err error
		db, err = receipt.NewBoltDB(filepath.Join(tempDir, "checks.db"))
		Expect(err).NotTo(HaveOccurred())

		store, err = receipt.NewLocalStorage(filepath.Join(tempDir, "uploads"))
		Expect(err).NotTo(HaveOccurred())

		rulesPath = filepath.Join(tempDir, "rules.yaml")
		Expect(os.WriteFile(rulesPath, []byte(integrationRules), 0644)).To(Succeed())
		ruleStore, err := rules.NewStore(rulesPath)
		Expect(err).NotTo(HaveOccurred())

		scanner = &stubScanner{doc: &scanning.Document{
			Text:       "Перевод по номеру телефона\nТелефон получателя: +7 (987) 933-55-15\nКарта получателя: 2200 5904 3190 0533\nСумма: 1 500,00 ₽",
			Confidence: 82,
			Engine:     "stub",
		}}

		server = receipt.NewServer(receipt.NewService(db, scanner, store, ruleStore), receipt.BasicAuth{})
		ghServer = ghttp.NewServer()
	})

	AfterEach(func() {
		if ghServer != nil {
			ghServer.Close()
		}
		if db != nil {
			db.Close()
		}
	})

	It("uploads a receipt, checks it, keeps it and deletes it", func() {
		ghServer.AppendHandlers(
			server.ServeHTTP, // upload
			server.ServeHTTP, // report
			server.ServeHTTP, // file
			server.ServeHTTP, // delete
		)

		body := &bytes.Buffer{}
		writer := multipart.NewWriter(body)
		part, err := writer.CreateFormFile("file", "receipt 15.01.pdf")
		Expect(err).NotTo(HaveOccurred())
		_, err = part.Write([]byte("%PDF-1.4 fake"))
		Expect(err).NotTo(HaveOccurred())
		Expect(writer.Close()).To(Succeed())

		resp, err := http.Post(ghServer.URL()+"/api/checks", writer.FormDataContentType(), body)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusCreated))

		var check receipt.Check
		Expect(json.NewDecoder(resp.Body).Decode(&check)).To(Succeed())
		Expect(check.Verdict.Valid).To(BeTrue())
		Expect(check.Verdict.Field(pattern.KindCard).Valid).To(BeTrue())
		Expect(check.Engine).To(Equal("stub"))
		Expect(check.ContentType).To(Equal("application/pdf"))
		Expect(check.Filename).To(Equal(check.ID + "_receipt 1501.pdf"))

		saved, err := db.GetCheck(check.ID)
		Expect(err).NotTo(HaveOccurred())
		Expect(saved.Report).To(Equal(check.Report))

		reportResp, err := http.Get(ghServer.URL() + "/api/checks/" + check.ID + "/report")
		Expect(err).NotTo(HaveOccurred())
		defer reportResp.Body.Close()
		reportText, err := io.ReadAll(reportResp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(string(reportText)).To(ContainSubstring("✅ СТАТУС: ЧЕК ВАЛИДЕН"))
		Expect(string(reportText)).To(ContainSubstring("✅ 💳 Карта: 2200590431900533 (валидна)"))

		fileResp, err := http.Get(ghServer.URL() + "/api/checks/" + check.ID + "/file")
		Expect(err).NotTo(HaveOccurred())
		defer fileResp.Body.Close()
		Expect(io.ReadAll(fileResp.Body)).To(Equal([]byte("%PDF-1.4 fake")))

		req, err := http.NewRequest(http.MethodDelete, ghServer.URL()+"/api/checks/"+check.ID, nil)
		Expect(err).NotTo(HaveOccurred())
		deleteResp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		deleteResp.Body.Close()
		Expect(deleteResp.StatusCode).To(Equal(http.StatusNoContent))

		_, err = db.GetCheck(check.ID)
		Expect(err).To(MatchError(receipt.ErrNotFound))
		_, err = store.Get(check.Filename)
		Expect(err).To(HaveOccurred())
	})

	It("applies reloaded rules to later checks", func() {
		ghServer.AppendHandlers(
			server.ServeHTTP, // first check
			server.ServeHTTP, // reload
			server.ServeHTTP, // second check
		)

		checkText := func() receipt.Check {
			resp, err := http.Post(ghServer.URL()+"/api/checks/text", "application/json",
				strings.NewReader(`{"text": "Сумма: 2000 ₽\nТелефон: 79879335515", "ocr_confidence": 90}`))
			Expect(err).NotTo(HaveOccurred())
			defer resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))
			var check receipt.Check
			Expect(json.NewDecoder(resp.Body).Decode(&check)).To(Succeed())
			return check
		}

		Expect(checkText().Verdict.Valid).To(BeFalse())

		updated := strings.Replace(integrationRules, "valid_amounts: [1500]", "valid_amounts: [1500, 2000]", 1)
		Expect(os.WriteFile(rulesPath, []byte(updated), 0644)).To(Succeed())

		resp, err := http.Post(ghServer.URL()+"/api/rules/reload", "application/json", nil)
		Expect(err).NotTo(HaveOccurred())
		defer resp.Body.Close()
		Expect(resp.StatusCode).To(Equal(http.StatusOK))
		var summary rules.Summary
		Expect(json.NewDecoder(resp.Body).Decode(&summary)).To(Succeed())
		Expect(summary.Amounts).To(Equal(2))

		Expect(checkText().Verdict.Valid).To(BeTrue())
	})
})
