package scanning

import (
	"bytes"
	"encoding/base64"
	"image/png"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"
)

var _ = Describe("Ollama", func() {
	var (
		server  *ghttp.Server
		scanner *Ollama
		pngData []byte
		doc     *Document
		err     error
	)

	BeforeEach(func() {
		server = ghttp.NewServer()
		scanner, err = NewOllama(server.URL()+"/", "qwen2.5vl")
		Expect(err).NotTo(HaveOccurred())

		var buf bytes.Buffer
		Expect(png.Encode(&buf, testImage())).To(Succeed())
		pngData = buf.Bytes()
	})

	AfterEach(func() {
		server.Close()
	})

	JustBeforeEach(func() {
		doc, err = scanner.Recognize(pngData, "image/png")
	})

	When("the model answers with a transcription", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.CombineHandlers(
				ghttp.VerifyRequest(http.MethodPost, "/api/chat"),
				ghttp.VerifyContentType("application/json"),
				ghttp.VerifyJSONRepresenting(ollamaChatRequest{
					Model:  "qwen2.5vl",
					Format: "json",
					Messages: []ollamaMessage{
						{Role: "system", Content: "You are a precise OCR engine. You transcribe text from images exactly as printed."},
						{Role: "user", Content: transcriptionPrompt, Images: []string{base64.StdEncoding.EncodeToString(pngData)}},
					},
				}),
				ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaChatResponse{
					Message: ollamaMessage{Role: "assistant", Content: `{"text": "Сумма: 1500", "confidence": 82}`},
					Done:    true,
				}),
			))
		})

		It("returns the document", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(doc.Text).To(Equal("Сумма: 1500"))
			Expect(doc.Confidence).To(Equal(82.0))
			Expect(doc.Engine).To(Equal("ollama"))
		})
	})

	When("the API fails", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWith(http.StatusInternalServerError, "model not loaded"))
		})

		It("returns the status and body", func() {
			Expect(err).To(MatchError(ContainSubstring("status 500")))
			Expect(err).To(MatchError(ContainSubstring("model not loaded")))
		})
	})

	When("the model answers with prose", func() {
		BeforeEach(func() {
			server.AppendHandlers(ghttp.RespondWithJSONEncoded(http.StatusOK, ollamaChatResponse{
				Message: ollamaMessage{Role: "assistant", Content: "I can't read this"},
				Done:    true,
			}))
		})

		It("returns a parse error", func() {
			Expect(err).To(MatchError(ContainSubstring("parsing ollama response")))
		})
	})
})
