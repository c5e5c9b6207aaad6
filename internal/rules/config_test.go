package rules

import (
	"errors"
	"os"
	"path/filepath"
	"strings"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/videlboga/ReceiptScan/internal/pattern"
)

const validConfig = `
min_confidence: 50
amount_tolerance: 0.01
valid_phones:
  - "+7 987 933-55-15"
  - 89001112233
valid_amounts:
  - 1500
  - "2 500,50"
  - value: 100
    currency: rub
valid_accounts:
  - "40817 81009 99100 04312"
valid_cards:
  - "2200 5904 3190 0533"
`

// withoutKey drops a top-level key and its indented block
func withoutKey(doc, key string) string {
	var out []string
	skipping := false
	for _, line := range strings.Split(doc, "\n") {
		if strings.HasPrefix(line, key+":") {
			skipping = true
			continue
		}
		if skipping && strings.HasPrefix(line, " ") {
			continue
		}
		skipping = false
		out = append(out, line)
	}
	return strings.Join(out, "\n")
}

var _ = Describe("Parse", func() {
	var (
		input string
		rs    *RuleSet
		err   error
	)

	JustBeforeEach(func() {
		rs, err = Parse([]byte(input))
	})

	When("the document is complete", func() {
		BeforeEach(func() {
			input = validConfig
		})

		It("should not return an error", func() {
			Expect(err).NotTo(HaveOccurred())
		})

		It("reads the thresholds", func() {
			Expect(rs.MinConfidence).To(Equal(50.0))
			Expect(rs.AmountTolerance).To(Equal(0.01))
		})

		It("normalizes phones", func() {
			Expect(rs.ValidPhones).To(Equal([]string{"79879335515", "79001112233"}))
		})

		It("reads amounts in every notation", func() {
			Expect(rs.ValidAmounts).To(Equal([]Amount{
				{Value: 1500},
				{Value: 2500.5},
				{Value: 100, Currency: "RUB"},
			}))
		})

		It("strips spaces from accounts and cards", func() {
			Expect(rs.ValidAccounts).To(Equal([]string{"40817810099910004312"}))
			Expect(rs.ValidCards).To(Equal([]string{"2200590431900533"}))
		})

		It("uses the default confidence policy", func() {
			Expect(rs.Confidence.OCRWeight).To(Equal(DefaultOCRWeight))
			Expect(rs.Confidence.Expression).To(BeEmpty())
		})
	})

	DescribeTable("rejects documents missing a required key",
		func(key string) {
			_, err := Parse([]byte(withoutKey(validConfig, key)))
			Expect(errors.Is(err, ErrMissingKey)).To(BeTrue())
			Expect(err.Error()).To(ContainSubstring(key))
		},
		Entry(nil, "min_confidence"),
		Entry(nil, "amount_tolerance"),
		Entry(nil, "valid_phones"),
		Entry(nil, "valid_amounts"),
		Entry(nil, "valid_accounts"),
		Entry(nil, "valid_cards"),
	)

	When("a list is empty", func() {
		BeforeEach(func() {
			input = "min_confidence: 60\namount_tolerance: 0\nvalid_phones: []\nvalid_amounts: []\nvalid_accounts: []\nvalid_cards:\n"
		})

		It("accepts it", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(rs.ValidCards).To(BeEmpty())
		})
	})

	When("a phone is malformed", func() {
		BeforeEach(func() {
			input = "min_confidence: 50\namount_tolerance: 0.01\nvalid_phones: [\"12345\"]\nvalid_amounts: []\nvalid_accounts: []\nvalid_cards: []\n"
		})

		It("returns an error naming the entry", func() {
			Expect(err).To(MatchError(ContainSubstring("valid_phones[0]")))
		})
	})

	When("a card has the wrong length", func() {
		BeforeEach(func() {
			input = "min_confidence: 50\namount_tolerance: 0.01\nvalid_phones: []\nvalid_amounts: []\nvalid_accounts: []\nvalid_cards: [\"1234\"]\n"
		})

		It("returns an error", func() {
			Expect(err).To(MatchError(ContainSubstring("valid_cards[0]")))
		})
	})

	When("min_confidence is out of range", func() {
		BeforeEach(func() {
			input = "min_confidence: 150\namount_tolerance: 0.01\nvalid_phones: []\nvalid_amounts: []\nvalid_accounts: []\nvalid_cards: []\n"
		})

		It("returns an error", func() {
			Expect(err).To(HaveOccurred())
		})
	})

	When("a confidence expression is configured", func() {
		BeforeEach(func() {
			input = validConfig + "confidence:\n  ocr_weight: 0.7\n  expression: \"ocr_confidence * 0.8 + field_confidence * 0.2\"\n"
		})

		It("compiles it", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(rs.Confidence.OCRWeight).To(Equal(0.7))
			Expect(rs.Confidence.Aggregate(100, []float64{0.5})).To(BeNumerically("~", 90, 1e-9))
		})
	})

	When("the confidence expression does not compile", func() {
		BeforeEach(func() {
			input = validConfig + "confidence:\n  expression: \"ocr_confidence +\"\n"
		})

		It("returns an error", func() {
			Expect(err).To(MatchError(ContainSubstring("compiling confidence expression")))
		})
	})

	When("the confidence expression returns a string", func() {
		BeforeEach(func() {
			input = validConfig + "confidence:\n  expression: \"'high'\"\n"
		})

		It("returns an error", func() {
			Expect(err).To(MatchError(ContainSubstring("must return double or int")))
		})
	})

	When("the document is not YAML", func() {
		BeforeEach(func() {
			input = "min_confidence: [unclosed"
		})

		It("returns an error", func() {
			Expect(err).To(HaveOccurred())
		})
	})
})

var _ = Describe("Load", func() {
	It("returns an error for a missing file", func() {
		_, err := Load(filepath.Join(GinkgoT().TempDir(), "absent.yaml"))
		Expect(err).To(MatchError(ContainSubstring("reading rules file")))
	})

	It("loads a file from disk", func() {
		path := filepath.Join(GinkgoT().TempDir(), "rules.yaml")
		Expect(os.WriteFile(path, []byte(validConfig), 0644)).To(Succeed())
		rs, err := Load(path)
		Expect(err).NotTo(HaveOccurred())
		Expect(rs.HasPhone("79879335515")).To(BeTrue())
	})
})

var _ = Describe("RuleSet", func() {
	var rs *RuleSet

	BeforeEach(func() {
		rs = defaultRuleSet()
	})

	Describe("WithValue", func() {
		It("adds a normalized phone without touching the original", func() {
			next, err := rs.WithValue(pattern.KindPhone, "8 900 111-22-33")
			Expect(err).NotTo(HaveOccurred())
			Expect(next.ValidPhones).To(ContainElement("79001112233"))
			Expect(rs.ValidPhones).To(HaveLen(1))
		})

		It("routes a 16-digit number to the card list", func() {
			next, err := rs.WithValue(pattern.KindAccount, "1111 2222 3333 4444")
			Expect(err).NotTo(HaveOccurred())
			Expect(next.ValidCards).To(ContainElement("1111222233334444"))
			Expect(next.ValidAccounts).To(Equal(rs.ValidAccounts))
		})

		It("adds an amount", func() {
			next, err := rs.WithValue(pattern.KindAmount, "250,50")
			Expect(err).NotTo(HaveOccurred())
			Expect(next.ValidAmounts).To(ContainElement(Amount{Value: 250.5}))
		})

		It("rejects kinds without a validity list", func() {
			_, err := rs.WithValue(pattern.KindDate, "2024-01-01")
			Expect(err).To(HaveOccurred())
		})

		It("rejects malformed values", func() {
			_, err := rs.WithValue(pattern.KindPhone, "123")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Summary", func() {
		It("counts every list", func() {
			s := rs.Summary()
			Expect(s.Phones).To(Equal(1))
			Expect(s.Amounts).To(Equal(1))
			Expect(s.Accounts).To(Equal(1))
			Expect(s.Cards).To(Equal(1))
			Expect(s.MinConfidence).To(Equal(50.0))
		})
	})
})
