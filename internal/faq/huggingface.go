package faq

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// DefaultInferenceURL is the hosted instruct model used for free-form questions.
const DefaultInferenceURL = "https://api-inference.huggingface.co/models/tiiuae/falcon-7b-instruct"

// Fallback texts sent to the customer when the model cannot answer.
const (
	ModelLoadingText = "نظام الذكاء الصناعي جاري التحميل. يرجى المحاولة مرة أخرى خلال دقيقتين أو التواصل على 01148820088 📞"
	UnavailableText  = "عذرًا، الخدمة غير متاحة حاليًا. يرجى التواصل على 01148820088"
	NotUnderstood    = "عذرًا، لم أفهم سؤالك تمامًا. ممكن توضحه أكتر؟ 🤔"
	NoReplyText      = "عذرًا، لم أتلق ردًا من الذكاء الصناعي. حاول تاني لاحقًا 🙏"
	ParseFailedText  = "عذرًا، حدث خطأ في معالجة الرد. يرجى التواصل على 01148820088"
	OutOfScopeText   = "هذا السؤال خارج تخصصنا، للاستفسارات المتخصصة يرجى التواصل على الرقم 01148820088"
)

var (
	errModelLoading = errors.New("faq: model is loading")
	errEmptyReply   = errors.New("faq: empty model reply")
	errBadReply     = errors.New("faq: undecodable model reply")
)

// StatusError is a non-2xx inference response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("faq: inference returned %d: %s", e.StatusCode, e.Body)
}

const promptTemplate = `أنت مساعد خدمة عملاء متخصص في محلات 'النوام' للأقمشة والأصواف الفاخرة.
الرد على استفسارات العملاء بالعربية الفصحى فقط وبأسلوب محترف ولطيف.

معلومات المحل:
- محلات النوام للأقمشة والأصواف، تأسست ١٩٧٢، أقمشة وأصواف رجالية فاخرة
- المنتجات: أقمشة السيلكا المستوردة والمصرية، الصوف المصري والإنجليزي والإيطالي، الصوف الكشمير الهندي
- العنوان: البحيرة، دمنهور، أمام مدرسة التعاون
- الشحن لجميع محافظات مصر، واتساب 01148820088

أجب على السؤال مباشرة وباختصار ولا تختلق معلومات غير موجودة أعلاه.

سؤال العميل: '%s'

الرد المناسب:`

// HuggingFaceClient calls the Hugging Face inference API.
type HuggingFaceClient struct {
	url        string
	apiKey     string
	httpClient *http.Client
}

// NewHuggingFaceClient creates a client. An empty url selects DefaultInferenceURL.
func NewHuggingFaceClient(url, apiKey string, timeout time.Duration) *HuggingFaceClient {
	if url == "" {
		url = DefaultInferenceURL
	}
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	return &HuggingFaceClient{url: url, apiKey: apiKey, httpClient: &http.Client{Timeout: timeout}}
}

type inferenceRequest struct {
	Inputs string `json:"inputs"`
}

type inferenceResult struct {
	GeneratedText *string `json:"generated_text"`
}

// Complete answers question, returning a fallback text when the model fails.
func (c *HuggingFaceClient) Complete(ctx context.Context, question string) string {
	text, err := c.Generate(ctx, fmt.Sprintf(promptTemplate, question))
	if err == nil {
		return text
	}
	log.WithError(err).Warn("faq: inference failed")

	var statusErr *StatusError
	switch {
	case errors.Is(err, errModelLoading):
		return ModelLoadingText
	case errors.As(err, &statusErr):
		return UnavailableText
	case errors.Is(err, errEmptyReply):
		return NoReplyText
	case errors.Is(err, errBadReply):
		return ParseFailedText
	default:
		return OutOfScopeText
	}
}

// Generate sends prompt and returns the first generated text.
func (c *HuggingFaceClient) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(inferenceRequest{Inputs: prompt})
	if err != nil {
		return "", errors.Wrap(err, "faq: encode inference request")
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return "", errors.Wrap(err, "faq: build inference request")
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", errors.Wrap(err, "faq: inference request")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return "", errors.Wrap(err, "faq: read inference response")
	}
	if resp.StatusCode == http.StatusServiceUnavailable {
		return "", errors.Wrapf(errModelLoading, "status %d", resp.StatusCode)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}

	var results []inferenceResult
	if err := json.Unmarshal(raw, &results); err != nil {
		return "", errors.Wrap(errBadReply, err.Error())
	}
	if len(results) == 0 {
		return "", errEmptyReply
	}
	if results[0].GeneratedText == nil {
		return NotUnderstood, nil
	}
	return *results[0].GeneratedText, nil
}
