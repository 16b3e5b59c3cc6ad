package quote

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"FundBoard/internal/model"
)

// EastmoneyFetcher implements Fetcher and Searcher against the public
// Eastmoney fund endpoints.
type EastmoneyFetcher struct {
	EstimateBaseURL string
	InfoBaseURL     string
	QuoteBaseURL    string
	SearchBaseURL   string
	Client          *http.Client
}

// NewEastmoneyFetcher creates a fetcher with optional proxy support.
func NewEastmoneyFetcher(proxyURL string) *EastmoneyFetcher {
	transport := &http.Transport{}
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport.Proxy = http.ProxyURL(u)
		}
	}
	return &EastmoneyFetcher{
		EstimateBaseURL: "https://fundgz.1234567.com.cn",
		InfoBaseURL:     "https://fundmobapi.eastmoney.com",
		QuoteBaseURL:    "https://push2.eastmoney.com",
		SearchBaseURL:   "https://fundsuggest.eastmoney.com",
		Client: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}
}

func (f *EastmoneyFetcher) Name() string { return "eastmoney" }

// estimatePayload is the JSON carried inside the jsonpgz(...) wrapper.
type estimatePayload struct {
	FundCode string `json:"fundcode"`
	Name     string `json:"name"`
	Dwjz     string `json:"dwjz"`
	Gsz      string `json:"gsz"`
	Gszzl    string `json:"gszzl"`
	Gztime   string `json:"gztime"`
}

// parseJSONP strips a jsonp wrapper like jsonpgz({...}); and returns
// the inner JSON, or "" when the body doesn't look like jsonp.
func parseJSONP(body string) string {
	start := strings.Index(body, "(")
	end := strings.LastIndex(body, ")")
	if start < 0 || end < 0 || end <= start {
		return ""
	}
	return body[start+1 : end]
}

// FetchSnapshot fetches the intraday estimate for a fund and enriches it
// with the fund's top holdings. Holdings are best-effort: their absence
// never fails the snapshot.
func (f *EastmoneyFetcher) FetchSnapshot(code string) (*model.Snapshot, error) {
	endpoint := fmt.Sprintf("%s/js/%s.js?rt=%d", f.EstimateBaseURL, url.PathEscape(code), time.Now().Unix())
	body, err := f.get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("%w: estimate %s: %v", ErrFetch, code, err)
	}

	inner := parseJSONP(string(body))
	if inner == "" {
		return nil, fmt.Errorf("%w: estimate %s: empty or non-jsonp response", ErrFetch, code)
	}

	var est estimatePayload
	if err := json.Unmarshal([]byte(inner), &est); err != nil {
		return nil, fmt.Errorf("%w: estimate decode %s: %v", ErrFetch, code, err)
	}
	if est.FundCode == "" {
		return nil, fmt.Errorf("%w: estimate %s: no data returned", ErrFetch, code)
	}

	snap := &model.Snapshot{
		Code:          est.FundCode,
		Name:          est.Name,
		PreviousNav:   est.Dwjz,
		EstimatedNav:  est.Gsz,
		EstimatedPct:  est.Gszzl,
		EstimatedAsOf: est.Gztime,
	}

	holdings, coverage, err := f.fetchHoldings(code)
	if err != nil {
		// Holdings enrich the card view only; the estimate alone is a
		// valid snapshot.
		return snap, nil
	}
	snap.Holdings = holdings
	snap.PricedCoverage = coverage
	return snap, nil
}

// fetchHoldings pulls the fund's top stock positions and fills in live
// prices where the exchange feed has them. Coverage is the share of
// reported weight that carries a live change.
func (f *EastmoneyFetcher) fetchHoldings(code string) ([]model.Holding, float64, error) {
	endpoint := fmt.Sprintf(
		"%s/FundMNewApi/FundMNBasicInformation?FCODE=%s&deviceid=fundboard&plat=Iphone&product=EFund&version=6.0.0",
		f.InfoBaseURL, url.QueryEscape(code))
	body, err := f.get(endpoint)
	if err != nil {
		return nil, 0, err
	}

	var info struct {
		Datas struct {
			InverstPositionList []struct {
				GPNM  string `json:"GPNM"`
				GPDM  string `json:"GPDM"`
				ZJZBL string `json:"ZJZBL"`
			} `json:"InverstPositionList"`
		} `json:"Datas"`
	}
	if err := json.Unmarshal(body, &info); err != nil {
		return nil, 0, fmt.Errorf("holdings decode %s: %w", code, err)
	}
	if len(info.Datas.InverstPositionList) == 0 {
		return nil, 0, nil
	}

	holdings := make([]model.Holding, 0, len(info.Datas.InverstPositionList))
	secids := make([]string, 0, len(info.Datas.InverstPositionList))
	weights := make([]float64, 0, len(info.Datas.InverstPositionList))
	stockCodes := make([]string, 0, len(info.Datas.InverstPositionList))
	for _, item := range info.Datas.InverstPositionList {
		holdings = append(holdings, model.Holding{
			Name:   item.GPNM,
			Weight: item.ZJZBL + "%",
		})
		var w float64
		fmt.Sscanf(item.ZJZBL, "%f", &w)
		weights = append(weights, w)
		stockCodes = append(stockCodes, item.GPDM)

		// Market prefix: 1 = Shanghai (6xxxxx), 0 = Shenzhen and Beijing.
		market := "0"
		if strings.HasPrefix(item.GPDM, "6") {
			market = "1"
		}
		secids = append(secids, market+"."+item.GPDM)
	}

	changes := f.fetchStockChanges(secids)

	var total, covered float64
	for i := range holdings {
		total += weights[i]
		if pct, ok := changes[stockCodes[i]]; ok {
			c := pct
			holdings[i].Change = &c
			covered += weights[i]
		}
	}
	coverage := 0.0
	if total > 0 {
		coverage = covered / total
	}
	if coverage > 1 {
		coverage = 1
	}
	return holdings, coverage, nil
}

// fetchStockChanges returns live change percentages keyed by stock code.
// Failures and halted stocks just leave codes out of the map.
func (f *EastmoneyFetcher) fetchStockChanges(secids []string) map[string]float64 {
	changes := make(map[string]float64)
	if len(secids) == 0 {
		return changes
	}
	endpoint := fmt.Sprintf("%s/api/qt/ulist.np/get?secids=%s&fields=f2,f3,f12",
		f.QuoteBaseURL, strings.Join(secids, ","))
	body, err := f.get(endpoint)
	if err != nil {
		return changes
	}

	var res struct {
		Data struct {
			Diff []struct {
				F12 string  `json:"f12"`
				F2  float64 `json:"f2"`
				F3  float64 `json:"f3"`
			} `json:"diff"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return changes
	}
	for _, item := range res.Data.Diff {
		if item.F2 == 0 {
			continue // halted or market closed
		}
		changes[item.F12] = item.F3
	}
	return changes
}

// Search queries the Eastmoney fund suggest API.
func (f *EastmoneyFetcher) Search(keyword string) ([]model.SearchResult, error) {
	endpoint := fmt.Sprintf("%s/FundSearch/api/FundSearchAPI.ashx?m=1&key=%s",
		f.SearchBaseURL, url.QueryEscape(keyword))
	body, err := f.get(endpoint)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", keyword, err)
	}

	var res struct {
		Datas []struct {
			CODE         string `json:"CODE"`
			NAME         string `json:"NAME"`
			CATEGORYDESC string `json:"CATEGORYDESC"`
		} `json:"Datas"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		return nil, fmt.Errorf("search decode %q: %w", keyword, err)
	}

	var list []model.SearchResult
	for _, item := range res.Datas {
		list = append(list, model.SearchResult{
			Code: item.CODE,
			Name: item.NAME,
			Type: item.CATEGORYDESC,
		})
	}
	return list, nil
}

func (f *EastmoneyFetcher) get(endpoint string) ([]byte, error) {
	req, err := http.NewRequest("GET", endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := f.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d, body: %s", resp.StatusCode, string(body))
	}
	return body, nil
}
