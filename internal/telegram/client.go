package telegram

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/support-bot/internal/config"
	apperrors "github.com/spec-kit/support-bot/pkg/util"
)

// Client talks to the Bot API over HTTP using the Fiber agent.
type Client struct {
	baseURL string
	token   string
	logger  *zap.Logger
}

// NewClient constructs a Bot API client.
func NewClient(cfg config.TelegramConfig, logger *zap.Logger) *Client {
	return &Client{
		baseURL: cfg.APIBaseURL,
		token:   cfg.Token,
		logger:  logger,
	}
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Result      json.RawMessage `json:"result"`
	Description string          `json:"description"`
}

type sendMessagePayload struct {
	ChatID      int64                 `json:"chat_id"`
	Text        string                `json:"text"`
	ParseMode   string                `json:"parse_mode,omitempty"`
	ReplyMarkup *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

type editMessagePayload struct {
	ChatID      int64                 `json:"chat_id"`
	MessageID   int64                 `json:"message_id"`
	Text        string                `json:"text"`
	ParseMode   string                `json:"parse_mode,omitempty"`
	ReplyMarkup *InlineKeyboardMarkup `json:"reply_markup,omitempty"`
}

type answerCallbackPayload struct {
	CallbackQueryID string `json:"callback_query_id"`
}

type setCommandsPayload struct {
	Commands []BotCommand `json:"commands"`
}

func (c *Client) SendMessage(_ context.Context, chatID int64, text string, markup *InlineKeyboardMarkup) (int64, error) {
	var message Message
	err := c.call("sendMessage", sendMessagePayload{
		ChatID:      chatID,
		Text:        text,
		ParseMode:   "HTML",
		ReplyMarkup: markup,
	}, &message)
	if err != nil {
		return 0, err
	}
	return message.MessageID, nil
}

func (c *Client) EditMessage(_ context.Context, chatID, messageID int64, text string, markup *InlineKeyboardMarkup) error {
	return c.call("editMessageText", editMessagePayload{
		ChatID:      chatID,
		MessageID:   messageID,
		Text:        text,
		ParseMode:   "HTML",
		ReplyMarkup: markup,
	}, nil)
}

func (c *Client) AnswerCallback(_ context.Context, callbackID string) error {
	return c.call("answerCallbackQuery", answerCallbackPayload{CallbackQueryID: callbackID}, nil)
}

func (c *Client) SetCommands(_ context.Context, commands []BotCommand) error {
	return c.call("setMyCommands", setCommandsPayload{Commands: commands}, nil)
}

func (c *Client) call(method string, payload any, out any) error {
	agent := fiber.AcquireAgent()
	defer fiber.ReleaseAgent(agent)

	req := agent.Request()
	req.Header.SetMethod(fiber.MethodPost)
	req.SetRequestURI(fmt.Sprintf("%s/bot%s/%s", c.baseURL, c.token, method))
	agent.JSON(payload)

	if err := agent.Parse(); err != nil {
		return fmt.Errorf("telegram %s: %w", method, err)
	}
	status, body, errs := agent.Bytes()
	if len(errs) > 0 {
		return apperrors.NewDeliveryFailed(fmt.Errorf("telegram %s: %w", method, errs[0]))
	}

	var response apiResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return fmt.Errorf("telegram %s: decode response: %w", method, err)
	}
	if status != fiber.StatusOK || !response.OK {
		return apperrors.NewDeliveryFailed(fmt.Errorf("telegram %s: %s", method, response.Description))
	}
	if out != nil && len(response.Result) > 0 {
		if err := json.Unmarshal(response.Result, out); err != nil {
			return fmt.Errorf("telegram %s: decode result: %w", method, err)
		}
	}
	return nil
}
