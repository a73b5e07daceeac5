package ledger

import (
	"os"
	"path/filepath"

	"github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = ginkgo.Describe("LocalStorage", func() {
	var (
		tmpDir  string
		storage Storage
	)

	ginkgo.BeforeEach(func() {
		tmpDir = filepath.Join(ginkgo.GinkgoT().TempDir(), "images")
		var err error
		storage, err = NewLocalStorage(tmpDir)
		Expect(err).NotTo(HaveOccurred())
	})

	ginkgo.It("should create the directory", func() {
		Expect(tmpDir).To(BeADirectory())
	})

	ginkgo.Describe("Save", func() {
		var (
			name  string
			saved string
			err   error
		)

		ginkgo.BeforeEach(func() {
			name = "id-1_invoice.jpg"
		})

		ginkgo.JustBeforeEach(func() {
			saved, err = storage.Save(name, []byte("jpeg bytes"))
		})

		ginkgo.It("should write the file", func() {
			Expect(err).NotTo(HaveOccurred())
			Expect(saved).To(Equal("id-1_invoice.jpg"))
			Expect(filepath.Join(tmpDir, saved)).To(BeAnExistingFile())
		})

		ginkgo.It("should not leave a temporary file behind", func() {
			Expect(filepath.Join(tmpDir, saved+".tmp")).NotTo(BeAnExistingFile())
		})

		ginkgo.When("the name tries to leave the directory", func() {
			ginkgo.BeforeEach(func() {
				name = "../../escape.jpg"
			})

			ginkgo.It("should keep the file inside", func() {
				Expect(err).NotTo(HaveOccurred())
				Expect(saved).To(Equal("escape.jpg"))
				Expect(filepath.Join(tmpDir, "escape.jpg")).To(BeAnExistingFile())
			})
		})

		ginkgo.When("the name is empty", func() {
			ginkgo.BeforeEach(func() {
				name = ""
			})

			ginkgo.It("should return an error", func() {
				Expect(err).To(HaveOccurred())
			})
		})
	})

	ginkgo.Describe("Get", func() {
		ginkgo.When("the file exists", func() {
			ginkgo.BeforeEach(func() {
				Expect(os.WriteFile(filepath.Join(tmpDir, "a.png"), []byte("png"), 0644)).To(Succeed())
			})

			ginkgo.It("should return its contents", func() {
				data, err := storage.Get("a.png")
				Expect(err).NotTo(HaveOccurred())
				Expect(data).To(Equal([]byte("png")))
			})
		})

		ginkgo.When("the file is missing", func() {
			ginkgo.It("should return ErrNotFound", func() {
				_, err := storage.Get("missing.png")
				Expect(err).To(MatchError(ErrNotFound))
			})
		})
	})

	ginkgo.Describe("Delete", func() {
		ginkgo.It("should remove the file", func() {
			_, err := storage.Save("b.png", []byte("png"))
			Expect(err).NotTo(HaveOccurred())
			Expect(storage.Delete("b.png")).To(Succeed())
			Expect(filepath.Join(tmpDir, "b.png")).NotTo(BeAnExistingFile())
		})

		ginkgo.It("should ignore a missing file", func() {
			Expect(storage.Delete("never-there.png")).To(Succeed())
		})
	})
})
