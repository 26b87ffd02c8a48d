package env

import (
	"os"
	"strconv"
)

const (
	ConfigPath         = "SUPPORT_CONFIG"
	AWSRegion          = "AWS_REGION"
	AWSID              = "AWS_ID"
	AWSSecret          = "AWS_SECRET"
	AWSToken           = "AWS_TOKEN"
	DynamoDBEndpoint   = "DYNAMODB_ENDPOINT"
	StoreDriver        = "STORE_DRIVER"
	BusDriver          = "BUS_DRIVER"
	SQLDSN             = "SQL_DSN"
	ChatRedisURL       = "CHAT_REDIS_URL"
	ChatRedisPass      = "CHAT_REDIS_PASS"
	AuthRedisURL       = "AUTH_REDIS_URL"
	AuthRedisPass      = "AUTH_REDIS_PASS"
	AgentSessionSecret = "AGENT_SESSION_SECRET"
	VisitorTokenSecret = "VISITOR_TOKEN_SECRET"
	SMTPHost           = "SMTP_HOST"
	SMTPPort           = "SMTP_PORT"
	SMTPUser           = "SMTP_USER"
	SMTPPass           = "SMTP_PASS"
	MailFrom           = "MAIL_FROM"
	MailDriver         = "MAIL_DRIVER"
	LogLevel           = "LOG_LEVEL"
	LogFormat          = "LOG_FORMAT"
	WebUrl             = "WEB_URL"
	WebsocketURL       = "WEBSOCKET_URL"
)

func GetOrDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

// Lookup reports whether key is set to a non-empty value.
func Lookup(key string) (string, bool) {
	val := os.Getenv(key)
	return val, val != ""
}

func GetInt(key string, defaultVal int) int {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}
