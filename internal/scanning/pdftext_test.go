package scanning

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

type mockScanner struct {
	doc      *Document
	err      error
	calls    int
	closed   bool
	closeErr error
}

func (m *mockScanner) Recognize(data []byte, contentType string) (*Document, error) {
	m.calls++
	return m.doc, m.err
}

func (m *mockScanner) Close() error {
	m.closed = true
	return m.closeErr
}

var _ = Describe("PDFText", func() {
	var (
		fallback *mockScanner
		scanner  *PDFText
	)

	BeforeEach(func() {
		fallback = &mockScanner{doc: &Document{Text: "Сумма 100", Confidence: 64, Engine: "tesseract"}}
		scanner = NewPDFText(fallback)
	})

	It("hands images to the fallback", func() {
		doc, err := scanner.Recognize([]byte("jpeg bytes"), "image/jpeg")
		Expect(err).NotTo(HaveOccurred())
		Expect(doc.Engine).To(Equal("tesseract"))
		Expect(fallback.calls).To(Equal(1))
	})

	It("returns fallback errors", func() {
		fallback.err = errors.New("tesseract failed")
		_, err := scanner.Recognize([]byte("jpeg bytes"), "image/jpeg")
		Expect(err).To(MatchError("tesseract failed"))
	})

	It("closes the fallback", func() {
		Expect(scanner.Close()).To(Succeed())
		Expect(fallback.closed).To(BeTrue())
	})
})
