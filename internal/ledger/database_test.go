package ledger

import (
	"encoding/json"
	"path/filepath"

	"github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = ginkgo.Describe("BoltDB", func() {
	var (
		tmpDir string
		dbPath string
		db     *BoltDB
	)

	ginkgo.BeforeEach(func() {
		tmpDir = ginkgo.GinkgoT().TempDir()
		dbPath = filepath.Join(tmpDir, "test.db")
		var err error
		db, err = NewBoltDB(dbPath)
		Expect(err).NotTo(HaveOccurred())
	})

	ginkgo.AfterEach(func() {
		if db != nil {
			db.Close()
		}
	})

	ginkgo.Describe("GetAll", func() {
		ginkgo.When("the collection has never been written", func() {
			ginkgo.It("should return nil", func() {
				data, err := db.GetAll(collectionParties)
				Expect(err).NotTo(HaveOccurred())
				Expect(data).To(BeNil())
			})
		})

		ginkgo.When("the collection exists", func() {
			ginkgo.BeforeEach(func() {
				Expect(db.ReplaceAll(collectionParties, json.RawMessage(`[{"id":"p1"}]`))).To(Succeed())
			})

			ginkgo.It("should return the stored document", func() {
				data, err := db.GetAll(collectionParties)
				Expect(err).NotTo(HaveOccurred())
				Expect(data).To(MatchJSON(`[{"id":"p1"}]`))
			})
		})
	})

	ginkgo.Describe("ReplaceMany", func() {
		ginkgo.It("should write every collection", func() {
			err := db.ReplaceMany(map[string]json.RawMessage{
				collectionSales:    json.RawMessage(`[{"id":"s1"}]`),
				collectionSettings: json.RawMessage(`{"businessName":"Corner Shop"}`),
			})
			Expect(err).NotTo(HaveOccurred())

			sales, err := db.GetAll(collectionSales)
			Expect(err).NotTo(HaveOccurred())
			Expect(sales).To(MatchJSON(`[{"id":"s1"}]`))

			settings, err := db.GetAll(collectionSettings)
			Expect(err).NotTo(HaveOccurred())
			Expect(settings).To(MatchJSON(`{"businessName":"Corner Shop"}`))
		})

		ginkgo.When("one document is not valid JSON", func() {
			ginkgo.BeforeEach(func() {
				Expect(db.ReplaceAll(collectionStock, json.RawMessage(`[]`))).To(Succeed())
			})

			ginkgo.It("should write nothing", func() {
				err := db.ReplaceMany(map[string]json.RawMessage{
					collectionStock:    json.RawMessage(`[{"id":"i1"}]`),
					collectionPayments: json.RawMessage(`[{`),
				})
				Expect(err).To(MatchError(ContainSubstring("invalid json")))

				stock, err := db.GetAll(collectionStock)
				Expect(err).NotTo(HaveOccurred())
				Expect(stock).To(MatchJSON(`[]`))
			})
		})
	})

	ginkgo.When("the database is reopened", func() {
		ginkgo.It("should keep the data", func() {
			Expect(db.ReplaceAll(collectionAlerts, json.RawMessage(`[{"id":"a1"}]`))).To(Succeed())
			Expect(db.Close()).To(Succeed())

			var err error
			db, err = NewBoltDB(dbPath)
			Expect(err).NotTo(HaveOccurred())

			data, err := db.GetAll(collectionAlerts)
			Expect(err).NotTo(HaveOccurred())
			Expect(data).To(MatchJSON(`[{"id":"a1"}]`))
		})
	})

	ginkgo.Describe("collection helpers", func() {
		ginkgo.It("should round trip records", func() {
			parties := []Party{{ID: "p1", Name: "Metro"}, {ID: "p2", Name: "Ravi"}}
			Expect(saveAll(db, collectionParties, parties)).To(Succeed())

			loaded, err := loadAll[Party](db, collectionParties)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).To(HaveLen(2))
			Expect(findByID(loaded, "p2")).To(Equal(1))
			Expect(findByID(loaded, "p3")).To(Equal(-1))
		})

		ginkgo.It("should return an empty slice for a missing collection", func() {
			loaded, err := loadAll[Sale](db, collectionSales)
			Expect(err).NotTo(HaveOccurred())
			Expect(loaded).NotTo(BeNil())
			Expect(loaded).To(BeEmpty())
		})

		ginkgo.It("should report documents of the wrong shape", func() {
			Expect(db.ReplaceAll(collectionSales, json.RawMessage(`{"id":"s1"}`))).To(Succeed())
			_, err := loadAll[Sale](db, collectionSales)
			Expect(err).To(MatchError(ContainSubstring("unmarshaling sales")))
		})
	})
})
