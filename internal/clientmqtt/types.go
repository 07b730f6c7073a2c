package clientmqtt

import "time"

type MQTTConf struct {
	ClientID    string // ClientID - уникальное имя клиента для брокеров.
	Schema      string // Schema - тип подключения.
	Host        string // Host - адрес MQTT сервера.
	Port        string // Port - порт MQTT сервера.
	User        string // User - логин для подключения к MQTT серверу.
	Password    string // Password - пароль для подключения к MQTT серверу.
	Qos         byte   // Qos - качество обслуживания.
	TopicPrefix string // TopicPrefix - корень топиков, по умолчанию "artnet".
}

// DataCh carries channel writes for one universe to the controller.
type DataCh struct {
	Addr uint16 // Addr - 15 бит port address.
	Data Payload
}

type DMXCommand struct {
	Channel uint16 `json:"channel"` // Channel is the channel a command can talk to (0-511).
	Value   uint8  `json:"value"`   // Value is the value a DMX channel can represent (0-255).
}

type Payload []DMXCommand

// NodeInfo is the retained message published for every discovered node.
type NodeInfo struct {
	IP        string    `json:"ip"`
	ShortName string    `json:"shortName"`
	LongName  string    `json:"longName"`
	Product   string    `json:"product"`
	Report    string    `json:"report"`
	Outputs   []uint16  `json:"outputs"`
	Inputs    []uint16  `json:"inputs"`
	LastSeen  time.Time `json:"lastSeen"`
}
