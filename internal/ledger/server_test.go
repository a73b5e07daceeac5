package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/golang/mock/gomock"
	"github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/onsi/gomega/ghttp"

	"github.com/zombor/ledger-scan/internal/invoice"
	"github.com/zombor/ledger-scan/internal/scanning"
	mock_scanning "github.com/zombor/ledger-scan/internal/scanning/mocks"
)

var _ = ginkgo.Describe("Server", func() {
	var (
		recognizer  *mock_scanning.MockRecognizer
		db          *mockDB
		storage     *mockStorage
		service     *Service
		server      *Server
		auth        BasicAuth
		ghttpServer *ghttp.Server
	)

	ginkgo.BeforeEach(func() {
		ctrl := gomock.NewController(ginkgo.GinkgoT())
		recognizer = mock_scanning.NewMockRecognizer(ctrl)
		recognizer.EXPECT().Name().Return("mock-ocr").AnyTimes()
		db = newMockDB()
		storage = newMockStorage()
		auth = BasicAuth{}
	})

	ginkgo.JustBeforeEach(func() {
		service = newTestService(recognizer, db, storage, Options{})
		server = NewServerWithMux(service, auth, http.NewServeMux())
		ghttpServer = ghttp.NewServer()
		ghttpServer.AppendHandlers(server.ServeHTTP)
	})

	ginkgo.AfterEach(func() {
		if ghttpServer != nil {
			ghttpServer.Close()
		}
	})

	do := func(method, path, body string) *http.Response {
		req, err := http.NewRequest(method, ghttpServer.URL()+path, strings.NewReader(body))
		Expect(err).NotTo(HaveOccurred())
		if body != "" {
			req.Header.Set("Content-Type", "application/json")
		}
		resp, err := http.DefaultClient.Do(req)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	decode := func(resp *http.Response, v any) {
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		Expect(err).NotTo(HaveOccurred())
		Expect(json.Unmarshal(body, v)).To(Succeed())
	}

	upload := func(filename string, data []byte) *http.Response {
		var buf bytes.Buffer
		mw := multipart.NewWriter(&buf)
		fw, err := mw.CreateFormFile("file", filename)
		Expect(err).NotTo(HaveOccurred())
		_, err = fw.Write(data)
		Expect(err).NotTo(HaveOccurred())
		Expect(mw.Close()).To(Succeed())

		resp, err := http.Post(ghttpServer.URL()+"/api/invoices/scan", mw.FormDataContentType(), &buf)
		Expect(err).NotTo(HaveOccurred())
		return resp
	}

	ginkgo.Describe("GET /healthz", func() {
		ginkgo.It("should report ok", func() {
			resp := do(http.MethodGet, "/healthz", "")
			var body map[string]string
			decode(resp, &body)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body["status"]).To(Equal("ok"))
		})
	})

	ginkgo.Describe("POST /api/invoices/scan", func() {
		ginkgo.When("a file is uploaded", func() {
			ginkgo.BeforeEach(func() {
				// CreateFormFile sends application/octet-stream, so the type comes from the extension
				recognizer.EXPECT().
					Recognize(gomock.Any(), []byte("jpeg bytes"), "image/jpeg").
					Return(&scanning.Recognition{Success: true, Lines: invoiceLines, Confidence: 88}, nil)
			})

			ginkgo.It("should return the draft", func() {
				resp := upload("bill.JPG", []byte("jpeg bytes"))
				var draft Draft
				decode(resp, &draft)
				Expect(resp.StatusCode).To(Equal(http.StatusCreated))
				Expect(draft.ID).To(Equal("id-1"))
				Expect(draft.PartyName).To(Equal("ABC Traders"))
				Expect(draft.Total).To(Equal(580.0))
				Expect(draft.NeedsReview).To(BeTrue())
			})
		})

		ginkgo.When("the recognizer fails", func() {
			ginkgo.BeforeEach(func() {
				recognizer.EXPECT().
					Recognize(gomock.Any(), gomock.Any(), gomock.Any()).
					Return(nil, errors.New("timeout"))
			})

			ginkgo.It("should return bad gateway with a retry message", func() {
				resp := upload("bill.png", []byte("png"))
				var body map[string]any
				decode(resp, &body)
				Expect(resp.StatusCode).To(Equal(http.StatusBadGateway))
				Expect(body["success"]).To(BeFalse())
				Expect(body["error"]).To(Equal(recognitionFailed))
			})
		})

		ginkgo.When("no file is sent", func() {
			ginkgo.It("should return bad request", func() {
				var buf bytes.Buffer
				mw := multipart.NewWriter(&buf)
				Expect(mw.WriteField("note", "x")).To(Succeed())
				Expect(mw.Close()).To(Succeed())

				resp, err := http.Post(ghttpServer.URL()+"/api/invoices/scan", mw.FormDataContentType(), &buf)
				Expect(err).NotTo(HaveOccurred())
				var body map[string]string
				decode(resp, &body)
				Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
				Expect(body["error"]).To(ContainSubstring("No file was selected"))
			})
		})
	})

	ginkgo.Describe("POST /api/invoices/parse", func() {
		ginkgo.It("should reconcile typed invoice text", func() {
			resp := do(http.MethodPost, "/api/invoices/parse",
				`{"text":"ABC Traders\n15/03/2024\nRice 10 50 550\nTotal 550"}`)
			var body map[string]any
			decode(resp, &body)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body["partyName"]).To(Equal("ABC Traders"))
			Expect(body["total"]).To(Equal(500.0))
			Expect(body["totalWasCorrected"]).To(BeTrue())
			Expect(body["totalChangePercentage"]).To(Equal(-9.09))
		})

		ginkgo.It("should reject empty text", func() {
			resp := do(http.MethodPost, "/api/invoices/parse", `{"text":"  "}`)
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	ginkgo.Describe("GET /api/drafts/{id}", func() {
		ginkgo.It("should return not found for unknown drafts", func() {
			resp := do(http.MethodGet, "/api/drafts/missing", "")
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNotFound))
		})
	})

	ginkgo.Describe("POST /api/drafts/{id}/edits", func() {
		var draftID string

		ginkgo.BeforeEach(func() {
			recognizer.EXPECT().
				Recognize(gomock.Any(), gomock.Any(), gomock.Any()).
				Return(&scanning.Recognition{Success: true, Lines: invoiceLines}, nil)
		})

		ginkgo.JustBeforeEach(func() {
			draft, err := service.ScanInvoice(context.Background(), "bill.png", []byte("png"), "image/png")
			Expect(err).NotTo(HaveOccurred())
			draftID = draft.ID
		})

		ginkgo.It("should apply the edits in order", func() {
			resp := do(http.MethodPost, "/api/drafts/"+draftID+"/edits",
				`{"edits":[{"kind":"update_item","index":0,"field":"amount","value":"500"},{"kind":"set_party_name","value":"ABC Traders Pvt Ltd"}]}`)
			var draft Draft
			decode(resp, &draft)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(draft.PartyName).To(Equal("ABC Traders Pvt Ltd"))
			Expect(draft.Items[0].IsValid).To(BeTrue())
			Expect(draft.NeedsReview).To(BeFalse())
		})

		ginkgo.It("should reject a malformed body", func() {
			resp := do(http.MethodPost, "/api/drafts/"+draftID+"/edits", `{"edits":`)
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	ginkgo.Describe("POST /api/reconcile", func() {
		ginkgo.It("should return the corrected figures", func() {
			resp := do(http.MethodPost, "/api/reconcile",
				`{"items":[{"name":"Rice","quantity":10,"rate":50,"lineAmount":550}],"total":550}`)
			var body map[string]any
			decode(resp, &body)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body["total"]).To(Equal(500.0))
			Expect(body["totalWasCorrected"]).To(BeTrue())
			Expect(body["validationSummary"]).To(Equal("1 line item(s) corrected, Total amount corrected"))
		})
	})

	ginkgo.Describe("POST /api/purchases", func() {
		ginkgo.It("should book the purchase", func() {
			resp := do(http.MethodPost, "/api/purchases",
				`{"partyName":"Metro Wholesale","date":"2024-03-18","items":[{"name":"Oil","quantity":2,"rate":150,"lineAmount":300}],"total":300,"taxPercent":18}`)
			var purchase Purchase
			decode(resp, &purchase)
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))
			Expect(purchase.PartyName).To(Equal("Metro Wholesale"))
			Expect(purchase.Tax).To(Equal(54.0))
			Expect(purchase.GrandTotal).To(Equal(354.0))
		})

		ginkgo.It("should reject an invoice without items", func() {
			resp := do(http.MethodPost, "/api/purchases", `{"partyName":"Metro Wholesale","items":[]}`)
			var body map[string]string
			decode(resp, &body)
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
			Expect(body["error"]).To(Equal(ErrNoItems.Error()))
		})
	})

	ginkgo.Describe("POST /api/sales", func() {
		ginkgo.It("should return the settled split", func() {
			resp := do(http.MethodPost, "/api/sales",
				`{"partyName":"Ravi","items":[{"name":"Oil","quantity":1,"rate":100,"lineAmount":100}],"total":100,"billAmount":60,"cashAmount":60}`)
			var sale Sale
			decode(resp, &sale)
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))
			Expect(sale.BillAmount).To(Equal(50.0))
			Expect(sale.CashAmount).To(Equal(50.0))
			Expect(sale.SplitWasCorrected).To(BeTrue())
		})
	})

	ginkgo.Describe("GET /api/parties/{id}", func() {
		var party *Party

		ginkgo.JustBeforeEach(func() {
			var err error
			party, err = service.CreateParty(PartyInput{Type: Vendor, Name: "Metro", OpeningBalance: 250})
			Expect(err).NotTo(HaveOccurred())
		})

		ginkgo.It("should return the party with its balance", func() {
			resp := do(http.MethodGet, "/api/parties/"+party.ID, "")
			var body struct {
				Party        Party              `json:"party"`
				Balance      float64            `json:"balance"`
				Transactions []PartyTransaction `json:"transactions"`
			}
			decode(resp, &body)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(body.Party.Name).To(Equal("Metro"))
			Expect(body.Balance).To(Equal(250.0))
			Expect(body.Transactions).To(BeEmpty())
		})
	})

	ginkgo.Describe("DELETE /api/parties/{id}", func() {
		var partyID string

		ginkgo.JustBeforeEach(func() {
			sale, err := service.ConfirmSale(SaleInput{InvoiceInput: InvoiceInput{
				PartyName: "Ravi",
				Items:     []invoice.LineItem{{Name: "Oil", Quantity: 1, Rate: 100, LineAmount: 100}},
				Total:     100,
			}})
			Expect(err).NotTo(HaveOccurred())
			partyID = sale.PartyID
		})

		ginkgo.It("should refuse while transactions exist", func() {
			resp := do(http.MethodDelete, "/api/parties/"+partyID, "")
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusConflict))
		})
	})

	ginkgo.Describe("POST /api/payments", func() {
		ginkgo.It("should reject an unknown payment mode", func() {
			party, err := service.CreateParty(PartyInput{Type: Customer, Name: "Ravi"})
			Expect(err).NotTo(HaveOccurred())

			resp := do(http.MethodPost, "/api/payments", `{"partyId":"`+party.ID+`","amount":"100","paymentMode":"Cheque"}`)
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusBadRequest))
		})
	})

	ginkgo.Describe("POST /api/stock/adjustments", func() {
		ginkgo.It("should return the adjusted item", func() {
			resp := do(http.MethodPost, "/api/stock/adjustments", `{"name":"Oil","quantity":12,"reason":"count"}`)
			var item StockItem
			decode(resp, &item)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(item.Name).To(Equal("Oil"))
			Expect(item.ClosingStock).To(Equal(12.0))
		})
	})

	ginkgo.Describe("GET /api/stock/out", func() {
		ginkgo.JustBeforeEach(func() {
			_, err := service.AdjustStock("Oil", 0, "spilled")
			Expect(err).NotTo(HaveOccurred())
			_, err = service.AdjustStock("Rice", 4, "count")
			Expect(err).NotTo(HaveOccurred())
		})

		ginkgo.It("should list only the empty items", func() {
			resp := do(http.MethodGet, "/api/stock/out", "")
			var items []StockItem
			decode(resp, &items)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(items).To(HaveLen(1))
			Expect(items[0].Name).To(Equal("Oil"))
		})
	})

	ginkgo.Describe("POST /api/purchases with a discount", func() {
		ginkgo.It("should take it off the grand total", func() {
			resp := do(http.MethodPost, "/api/purchases",
				`{"partyName":"Metro Wholesale","items":[{"name":"Oil","quantity":2,"rate":150,"lineAmount":300}],"total":300,"discount":10,"discountType":"percentage"}`)
			var purchase Purchase
			decode(resp, &purchase)
			Expect(resp.StatusCode).To(Equal(http.StatusCreated))
			Expect(purchase.Discount).To(Equal(30.0))
			Expect(purchase.GrandTotal).To(Equal(270.0))
		})
	})

	ginkgo.Describe("PUT /api/settings", func() {
		ginkgo.It("should store the settings", func() {
			resp := do(http.MethodPut, "/api/settings", `{"businessName":"Corner Shop","lowStockThreshold":5}`)
			var settings Settings
			decode(resp, &settings)
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
			Expect(settings.BusinessName).To(Equal("Corner Shop"))
			Expect(settings.LowStockThreshold).To(Equal(5.0))
		})
	})

	ginkgo.When("the database fails", func() {
		ginkgo.BeforeEach(func() {
			db.getErr = errors.New("disk I/O error")
		})

		ginkgo.It("should hide the cause", func() {
			resp := do(http.MethodGet, "/api/stock", "")
			var body map[string]string
			decode(resp, &body)
			Expect(resp.StatusCode).To(Equal(http.StatusInternalServerError))
			Expect(body["error"]).To(Equal("Internal server error"))
		})
	})

	ginkgo.When("basic auth is configured", func() {
		ginkgo.BeforeEach(func() {
			auth = BasicAuth{Username: "admin", Password: "secret"}
		})

		ginkgo.It("should reject requests without credentials", func() {
			resp := do(http.MethodGet, "/api/parties", "")
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusUnauthorized))
			Expect(resp.Header.Get("WWW-Authenticate")).To(Equal(`Basic realm="Ledger Scan"`))
		})

		ginkgo.It("should accept valid credentials", func() {
			req, err := http.NewRequest(http.MethodGet, ghttpServer.URL()+"/api/parties", nil)
			Expect(err).NotTo(HaveOccurred())
			req.SetBasicAuth("admin", "secret")
			resp, err := http.DefaultClient.Do(req)
			Expect(err).NotTo(HaveOccurred())
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})

		ginkgo.It("should leave the health check open", func() {
			resp := do(http.MethodGet, "/healthz", "")
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusOK))
		})
	})

	ginkgo.When("the browser sends a preflight request", func() {
		ginkgo.It("should answer with CORS headers", func() {
			resp := do(http.MethodOptions, "/api/parties", "")
			resp.Body.Close()
			Expect(resp.StatusCode).To(Equal(http.StatusNoContent))
			Expect(resp.Header.Get("Access-Control-Allow-Origin")).To(Equal("*"))
		})
	})
})
