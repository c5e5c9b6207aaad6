package scanning

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"

	"github.com/otiai10/gosseract/v2"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

func testImage() image.Image {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for x := 0; x < 4; x++ {
		img.Set(x, x, color.Black)
	}
	return img
}

var _ = Describe("prepareImageData", func() {
	It("converts JPEG to PNG", func() {
		var buf bytes.Buffer
		Expect(jpeg.Encode(&buf, testImage(), nil)).To(Succeed())

		data, converted, err := prepareImageData(buf.Bytes(), "image/jpeg")
		Expect(err).NotTo(HaveOccurred())
		Expect(converted).To(BeTrue())
		_, format, err := image.Decode(bytes.NewReader(data))
		Expect(err).NotTo(HaveOccurred())
		Expect(format).To(Equal("png"))
	})

	It("passes PNG through", func() {
		var buf bytes.Buffer
		Expect(png.Encode(&buf, testImage())).To(Succeed())

		data, converted, err := prepareImageData(buf.Bytes(), "Image/PNG ")
		Expect(err).NotTo(HaveOccurred())
		Expect(converted).To(BeFalse())
		Expect(data).To(Equal(buf.Bytes()))
	})

	It("rejects unknown formats", func() {
		_, _, err := prepareImageData([]byte("not an image"), "image/webp")
		Expect(err).To(MatchError(ContainSubstring("unsupported image format")))
	})
})

var _ = Describe("format detection", func() {
	It("recognizes HEIC brands", func() {
		Expect(isHEICFormat([]byte("\x00\x00\x00\x18ftypheic\x00\x00"))).To(BeTrue())
		Expect(isHEICFormat([]byte("\x00\x00\x00\x18ftypmp42\x00\x00"))).To(BeFalse())
		Expect(isHEICFormat([]byte("short"))).To(BeFalse())
	})

	It("recognizes HEIC MIME types", func() {
		Expect(isHEICMimeType("image/HEIF")).To(BeTrue())
		Expect(isHEICMimeType("image/jpeg")).To(BeFalse())
	})

	It("recognizes PDFs by type or magic bytes", func() {
		Expect(isPDF(nil, "application/pdf; charset=binary")).To(BeTrue())
		Expect(isPDF([]byte("%PDF-1.7\n"), "application/octet-stream")).To(BeTrue())
		Expect(isPDF([]byte("GIF89a"), "image/gif")).To(BeFalse())
	})
})

var _ = Describe("meanConfidence", func() {
	It("averages the word confidences", func() {
		boxes := []gosseract.BoundingBox{
			{Word: "Сумма", Confidence: 90},
			{Word: "1500", Confidence: 70},
		}
		Expect(meanConfidence(boxes)).To(Equal(80.0))
	})

	It("skips empty boxes", func() {
		boxes := []gosseract.BoundingBox{
			{Word: "Итого", Confidence: 60},
			{Word: " ", Confidence: 95},
			{Word: "", Confidence: 0},
		}
		Expect(meanConfidence(boxes)).To(Equal(60.0))
	})

	It("is zero without words", func() {
		Expect(meanConfidence(nil)).To(BeZero())
	})
})
