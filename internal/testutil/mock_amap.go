// Package testutil provides testing utilities for the POI harvester.
package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"
)

// MockStep is one scripted response of the mock API.
type MockStep struct {
	// StatusCode defaults to 200.
	StatusCode int
	Body       string
	Delay      time.Duration

	// Drop closes the connection without writing a response.
	Drop bool
}

// MockAMap is a configurable mock of the AMap place text search endpoint.
//
// Responses are scripted per (region, types) pair and consumed in order.
// Requests past the end of a script are answered from DefaultPages.
type MockAMap struct {
	server *httptest.Server

	mu      sync.Mutex
	scripts map[string][]MockStep
	pages   map[string][]int

	// DefaultPages is the number of full pages served for unscripted queries.
	DefaultPages int
	// ItemsPerPage is the number of items in each default page.
	ItemsPerPage int
	// Latency is added to every response.
	Latency time.Duration

	requestCount int
	inFlight     int
	peakInFlight int
	lastQuery    map[string][]string
}

// NewMockAMap creates and starts a new mock server.
func NewMockAMap() *MockAMap {
	m := &MockAMap{
		scripts:      make(map[string][]MockStep),
		pages:        make(map[string][]int),
		ItemsPerPage: 25,
	}
	m.server = httptest.NewServer(http.HandlerFunc(m.serve))
	return m
}

// URL returns the endpoint URL of the mock.
func (m *MockAMap) URL() string {
	return m.server.URL + "/v5/place/text"
}

// Close shuts down the mock server.
func (m *MockAMap) Close() {
	m.server.CloseClientConnections()
	m.server.Close()
}

// Script queues responses for one (region, category) query.
func (m *MockAMap) Script(region, category string, steps ...MockStep) {
	m.mu.Lock()
	defer m.mu.Unlock()
	k := scriptKey(region, category)
	m.scripts[k] = append(m.scripts[k], steps...)
}

// RequestCount returns the number of requests received.
func (m *MockAMap) RequestCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.requestCount
}

// PeakInFlight returns the highest number of concurrently served requests.
func (m *MockAMap) PeakInFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.peakInFlight
}

// PagesRequested returns the page_num sequence received for a query.
func (m *MockAMap) PagesRequested(region, category string) []int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]int(nil), m.pages[scriptKey(region, category)]...)
}

// LastQuery returns the query parameters of the latest request.
func (m *MockAMap) LastQuery() map[string][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastQuery
}

func (m *MockAMap) serve(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	k := scriptKey(q.Get("region"), q.Get("types"))
	pageNum, _ := strconv.Atoi(q.Get("page_num"))

	m.mu.Lock()
	m.requestCount++
	m.inFlight++
	if m.inFlight > m.peakInFlight {
		m.peakInFlight = m.inFlight
	}
	m.lastQuery = map[string][]string(q)
	m.pages[k] = append(m.pages[k], pageNum)

	var step MockStep
	scripted := false
	if steps := m.scripts[k]; len(steps) > 0 {
		step = steps[0]
		m.scripts[k] = steps[1:]
		scripted = true
	}
	latency := m.Latency
	defaultPages := m.DefaultPages
	perPage := m.ItemsPerPage
	m.mu.Unlock()

	defer func() {
		m.mu.Lock()
		m.inFlight--
		m.mu.Unlock()
	}()

	if latency > 0 {
		time.Sleep(latency)
	}

	if !scripted {
		if pageNum >= 1 && pageNum <= defaultPages {
			step = MockStep{Body: PageBody(q.Get("region"), q.Get("types"), (pageNum-1)*perPage, perPage)}
		} else {
			step = MockStep{Body: EmptyPageBody()}
		}
	}

	if step.Delay > 0 {
		time.Sleep(step.Delay)
	}

	if step.Drop {
		hj, ok := w.(http.Hijacker)
		if !ok {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		conn, _, err := hj.Hijack()
		if err == nil {
			conn.Close()
		}
		return
	}

	status := step.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.Header().Set("Content-Type", "application/json;charset=UTF-8")
	w.WriteHeader(status)
	if step.Body != "" {
		w.Write([]byte(step.Body))
	}
}

func scriptKey(region, category string) string {
	return region + "\x00" + category
}

type mockPOI struct {
	Name     string            `json:"name"`
	Location string            `json:"location,omitempty"`
	PName    string            `json:"pname"`
	CityName string            `json:"cityname"`
	AdName   string            `json:"adname"`
	Type     string            `json:"type"`
	TypeCode string            `json:"typecode"`
	Business map[string]string `json:"business,omitempty"`
}

type mockPage struct {
	Status   string    `json:"status"`
	Info     string    `json:"info"`
	InfoCode string    `json:"infocode"`
	Count    string    `json:"count"`
	POIs     []mockPOI `json:"pois"`
}

func encode(p mockPage) string {
	b, err := json.Marshal(p)
	if err != nil {
		panic(err)
	}
	return string(b)
}

// PageBody returns a successful page with n well-formed items numbered from offset.
func PageBody(region, category string, offset, n int) string {
	pois := make([]mockPOI, 0, n)
	for i := 0; i < n; i++ {
		pois = append(pois, newMockPOI(region, category, offset+i))
	}
	return encode(mockPage{Status: "1", Info: "OK", InfoCode: "10000", Count: strconv.Itoa(n), POIs: pois})
}

// PageBodyMissingLocation is like PageBody but item missing has no location.
func PageBodyMissingLocation(region, category string, offset, n, missing int) string {
	pois := make([]mockPOI, 0, n)
	for i := 0; i < n; i++ {
		p := newMockPOI(region, category, offset+i)
		if i == missing {
			p.Location = ""
		}
		pois = append(pois, p)
	}
	return encode(mockPage{Status: "1", Info: "OK", InfoCode: "10000", Count: strconv.Itoa(n), POIs: pois})
}

// EmptyPageBody returns a successful page with count 0.
func EmptyPageBody() string {
	return encode(mockPage{Status: "1", Info: "OK", InfoCode: "10000", Count: "0", POIs: []mockPOI{}})
}

// ErrorBody returns a domain error body with the given infocode.
func ErrorBody(infoCode, info string) string {
	return encode(mockPage{Status: "0", Info: info, InfoCode: infoCode, Count: "0"})
}

// CongestionBody returns the per-user QPS exceeded error.
func CongestionBody() string {
	return ErrorBody("10021", "CUQPS_HAS_EXCEEDED_THE_LIMIT")
}

func newMockPOI(region, category string, i int) mockPOI {
	return mockPOI{
		Name:     fmt.Sprintf("%s-%s-%d", region, category, i),
		Location: fmt.Sprintf("%.6f,%.6f", 108.5+float64(i)*0.001, 25.9+float64(i)*0.001),
		PName:    "贵州省",
		CityName: "黔东南苗族侗族自治州",
		AdName:   region,
		Type:     "生活服务;" + category + ";" + category,
		TypeCode: "200300",
		Business: map[string]string{"rating": "4.0"},
	}
}
