package rules

import (
	"os"
	"path/filepath"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/videlboga/ReceiptScan/internal/pattern"
)

var _ = Describe("Store", func() {
	var (
		path  string
		store *Store
	)

	BeforeEach(func() {
		path = filepath.Join(GinkgoT().TempDir(), "rules.yaml")
		Expect(os.WriteFile(path, []byte(validConfig), 0644)).To(Succeed())

		var err error
		store, err = NewStore(path)
		Expect(err).NotTo(HaveOccurred())
	})

	It("loads the file on creation", func() {
		Expect(store.Path()).To(Equal(path))
		Expect(store.Current().HasPhone("79879335515")).To(BeTrue())
	})

	It("fails to start on a missing file", func() {
		_, err := NewStore(filepath.Join(GinkgoT().TempDir(), "absent.yaml"))
		Expect(err).To(HaveOccurred())
	})

	Describe("Reload", func() {
		It("picks up a changed file", func() {
			updated := withoutKey(validConfig, "min_confidence") + "min_confidence: 70\n"
			Expect(os.WriteFile(path, []byte(updated), 0644)).To(Succeed())

			rs, err := store.Reload()
			Expect(err).NotTo(HaveOccurred())
			Expect(rs.MinConfidence).To(Equal(70.0))
			Expect(store.Current()).To(BeIdenticalTo(rs))
		})

		It("keeps the previous rule set when the file is broken", func() {
			before := store.Current()
			Expect(os.WriteFile(path, []byte("min_confidence: 50\n"), 0644)).To(Succeed())

			_, err := store.Reload()
			Expect(err).To(MatchError(ErrMissingKey))
			Expect(store.Current()).To(BeIdenticalTo(before))
		})

		It("is unavailable for a static store", func() {
			static := NewStaticStore(defaultRuleSet())
			_, err := static.Reload()
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("Add", func() {
		It("extends the current rule set", func() {
			Expect(store.Current().HasPhone("79005554433")).To(BeFalse())
			_, err := store.Add(pattern.KindPhone, "+7 900 555 44 33")
			Expect(err).NotTo(HaveOccurred())
			Expect(store.Current().HasPhone("79005554433")).To(BeTrue())
		})

		It("leaves the rule set alone on a bad value", func() {
			before := store.Current()
			_, err := store.Add(pattern.KindCard, "12")
			Expect(err).To(HaveOccurred())
			Expect(store.Current()).To(BeIdenticalTo(before))
		})

		It("is dropped by the next reload", func() {
			_, err := store.Add(pattern.KindPhone, "79005554433")
			Expect(err).NotTo(HaveOccurred())
			_, err = store.Reload()
			Expect(err).NotTo(HaveOccurred())
			Expect(store.Current().HasPhone("79005554433")).To(BeFalse())
			Expect(store.Current().HasPhone("79001112233")).To(BeTrue())
		})
	})
})
