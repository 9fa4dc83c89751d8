package site

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/hitoshi/zaiko/internal/model"
)

// Extraction は1ページ分の抽出結果を表す。
type Extraction struct {
	Signal      model.Signal
	StockText   string
	ProductName string
}

// nameSelectors は商品名抽出のフォールバック順のセレクタ。
// サイト設定にnameSelectorがある場合はそれを先頭に試す。
var nameSelectors = []string{
	"h1",
	".product-title",
	".product-name",
	`[data-testid="product-title"]`,
	".item-title",
}

// Adapter はサイト設定に基づいて商品ページのHTMLから在庫シグナルを抽出する。
// ステートレスで、複数goroutineから共有できる。
type Adapter struct {
	cfg *Config
}

// NewAdapter は指定サイト設定のAdapterを生成する。
func NewAdapter(cfg *Config) *Adapter {
	return &Adapter{cfg: cfg}
}

// Extract はHTMLから在庫シグナルと商品名を抽出する。
// 在庫セレクタの領域テキストに在庫切れ表現が含まれればOutOfStock、
// 領域が存在しテキストが非空であればInStock。
// 領域が見つからない場合はページ全体から在庫切れ表現を探し、
// 見つかればOutOfStock、見つからなければIndeterminateとなる。
// HTMLのパース自体に失敗した場合のみerrorを返す。
func (a *Adapter) Extract(html string) (*Extraction, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("HTMLのパースに失敗しました: %w", err)
	}

	ext := &Extraction{
		ProductName: a.extractProductName(doc),
	}

	stockText := firstNonEmptyText(doc, a.cfg.StockSelector)
	if stockText != "" {
		ext.StockText = stockText
		if a.containsIndicator(stockText) {
			ext.Signal = model.SignalOutOfStock
		} else {
			ext.Signal = model.SignalInStock
		}
		return ext, nil
	}

	// 在庫領域が見つからない場合はページ全体から在庫切れ表現を探す
	pageText := doc.Text()
	if indicator := a.matchIndicator(pageText); indicator != "" {
		ext.Signal = model.SignalOutOfStock
		ext.StockText = indicator
		return ext, nil
	}

	ext.Signal = model.SignalIndeterminate
	return ext, nil
}

// extractProductName は設定のnameSelectorと既定セレクタの順で商品名を探す。
// 見つからない場合は空文字列を返す。
func (a *Adapter) extractProductName(doc *goquery.Document) string {
	selectors := nameSelectors
	if a.cfg.NameSelector != "" {
		selectors = append([]string{a.cfg.NameSelector}, nameSelectors...)
	}
	for _, sel := range selectors {
		if text := strings.TrimSpace(doc.Find(sel).First().Text()); text != "" {
			return text
		}
	}
	return ""
}

// containsIndicator はテキストに在庫切れ表現が含まれるかを大文字小文字を無視して判定する。
func (a *Adapter) containsIndicator(text string) bool {
	return a.matchIndicator(text) != ""
}

// matchIndicator はテキストに最初に一致した在庫切れ表現を返す。一致しない場合は空文字列。
func (a *Adapter) matchIndicator(text string) string {
	lower := strings.ToLower(text)
	for _, indicator := range a.cfg.OutOfStockIndicators {
		if strings.Contains(lower, strings.ToLower(indicator)) {
			return indicator
		}
	}
	return ""
}

// firstNonEmptyText はセレクタに一致する要素のうち最初の非空テキストを返す。
func firstNonEmptyText(doc *goquery.Document, selector string) string {
	var text string
	doc.Find(selector).EachWithBreak(func(_ int, s *goquery.Selection) bool {
		if t := strings.TrimSpace(s.Text()); t != "" {
			text = t
			return false
		}
		return true
	})
	return text
}
