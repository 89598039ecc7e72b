package ports

import "time"

const (
	DropOldest = "drop_oldest"
	DropNewest = "drop_newest"
	Disconnect = "disconnect"
)

type Policy struct {
	HistoryCapacity    int           `yaml:"history_capacity"`
	HistoryLimit       int           `yaml:"history_limit"`
	SubscriberQueueLen int           `yaml:"subscriber_queue_len"`
	KeepAlive          time.Duration `yaml:"keep_alive"`

	OnSubscriberFull string `yaml:"on_subscriber_full"` // "drop_oldest", "drop_newest", "disconnect"
}
