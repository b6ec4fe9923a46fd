package api

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/aqlanhadi/stmtfold/extractor"
	"github.com/aqlanhadi/stmtfold/extractor/common"
	"github.com/aqlanhadi/stmtfold/extractor/tables"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const statementCSV = "Date,Narration,Withdrawal,Deposit,Balance\n" +
	"01/06/2018,UPI/AMAZON/REF123,,250.00,\"1,200.50\"\n"

func testServer() *Server {
	return New(Config{
		Port:    ":0",
		Extract: extractor.Options{Tables: tables.DefaultConfig(), Workers: 2},
	})
}

func uploadRequest(t *testing.T, target, filename, content string, fields map[string]string) *http.Request {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	part, err := writer.CreateFormFile("file", filename)
	require.NoError(t, err)
	_, err = io.WriteString(part, content)
	require.NoError(t, err)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	require.NoError(t, writer.Close())

	req := httptest.NewRequest(http.MethodPost, target, body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	return req
}

func TestNew(t *testing.T) {
	server := testServer()
	require.NotNil(t, server)
	assert.NotNil(t, server.mux)
	assert.Equal(t, int64(32<<20), server.config.MaxBytes)
}

func TestHandler(t *testing.T) {
	server := testServer()
	assert.Equal(t, server.mux, server.Handler())
}

func TestHealthEndpoint(t *testing.T) {
	w := httptest.NewRecorder()
	testServer().Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	var response map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "ok", response["status"])
}

func TestExtractEndpoint_MethodNotAllowed(t *testing.T) {
	w := httptest.NewRecorder()
	testServer().Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/extract", nil))
	assert.Equal(t, http.StatusMethodNotAllowed, w.Code)
}

func TestExtractEndpoint_NoFile(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/extract", nil)
	req.Header.Set("Content-Type", "multipart/form-data")
	w := httptest.NewRecorder()

	testServer().Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExtractEndpoint_Unsupported(t *testing.T) {
	w := httptest.NewRecorder()
	testServer().Handler().ServeHTTP(w, uploadRequest(t, "/extract", "notes.txt", "hello", nil))
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestExtractEndpoint_InvalidPDF(t *testing.T) {
	w := httptest.NewRecorder()
	testServer().Handler().ServeHTTP(w, uploadRequest(t, "/extract", "test.pdf", "not a valid pdf", nil))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
}

func TestExtractEndpoint_CSVWithHints(t *testing.T) {
	req := uploadRequest(t, "/extract", "statement.csv", statementCSV, map[string]string{
		"hints": `{"maskedAccNumber":["XXXX1234"],"fipId":"ACME-FIP"}`,
	})
	w := httptest.NewRecorder()

	testServer().Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var statement common.Statement
	require.NoError(t, json.NewDecoder(w.Body).Decode(&statement))
	require.Len(t, statement.Transactions, 1)
	txn := statement.Transactions[0]
	assert.Equal(t, "UPI", txn.Mode)
	assert.Equal(t, "CREDIT", common.Deref(txn.Type))
	assert.Equal(t, common.FloatOf(250), txn.Amount)
	assert.Equal(t, common.IntOf(1527811200000), txn.ValueDate)
	assert.Equal(t, common.FloatOf(1200.5), txn.CurrentBalance)
	assert.Equal(t, "XXXX1234", common.Deref(txn.MaskedAccNumber))
	assert.Equal(t, "ACME-FIP", common.Deref(statement.Summary.FipID))
}

func TestExtractEndpoint_InvalidHints(t *testing.T) {
	req := uploadRequest(t, "/extract", "statement.csv", statementCSV, map[string]string{"hints": "{"})
	w := httptest.NewRecorder()

	testServer().Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestExtractEndpoint_TextOnly(t *testing.T) {
	w := httptest.NewRecorder()
	testServer().Handler().ServeHTTP(w, uploadRequest(t, "/extract?text_only=true", "statement.csv", statementCSV, nil))

	require.Equal(t, http.StatusOK, w.Code)
	var response map[string]string
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	assert.Equal(t, "statement.csv", response["filename"])
	assert.Contains(t, response["text"], "UPI/AMAZON/REF123")
}

func TestAssembleEndpoint(t *testing.T) {
	partials := `[
		{"summary":{"fipId":"ACME","maskedAccNumber":"XX11","balanceDateTime":100,"currentBalance":"500"},
		 "transactions":[{"txnId":"T1","amount":10,"transactionTimestamp":100,"maskedAccNumber":"XX11"}]},
		{"summary":{"fipId":"acme","maskedAccNumber":"xx11","balanceDateTime":200,"currentBalance":600,"branch":"MAIN"},
		 "transactions":[{"txnId":"t1","amount":"10","transactionTimestamp":"100","maskedAccNumber":"xx11"}]}
	]`
	req := httptest.NewRequest(http.MethodPost, "/assemble", bytes.NewBufferString(partials))
	w := httptest.NewRecorder()

	testServer().Handler().ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code)
	var response []AssembleResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&response))
	require.Len(t, response, 1)
	assert.Equal(t, "bank_ACME_XX11_unknown.json", response[0].File)
	bundle := response[0].Bundle
	assert.Len(t, bundle.Transactions, 1)
	assert.Equal(t, common.FloatOf(600), bundle.Summary.CurrentBalance)
	assert.Equal(t, "MAIN", common.Deref(bundle.Summary.Branch))
	assert.Equal(t, 1, bundle.TransactionsMeta.NoOfTransactions)
}

func TestAssembleEndpoint_BadBody(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/assemble", bytes.NewBufferString("nope"))
	w := httptest.NewRecorder()

	testServer().Handler().ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestFlag(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/extract?always_list=true", nil)
	assert.True(t, flag(req, "always_list"))
	assert.False(t, flag(req, "text_only"))
}
