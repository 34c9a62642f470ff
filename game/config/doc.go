// Package config provides client configuration for Stop Ultra.
//
// The config package handles:
//   - Built-in defaults for the server address, state directory and timers
//   - Loading overrides from an optional JSON file
//   - Validation of the merged configuration
//   - Deriving the realtime endpoint from the server address
//
// Configuration Format:
//
//	{
//	  "server_url": "https://stop.example.com",
//	  "state_dir": "/home/ana/.config/stop-ultra",
//	  "reconnect_delay": "2s",
//	  "spin_delay": "2s",
//	  "tick_interval": "1s",
//	  "default_time_limit": 60,
//	  "http_timeout": "10s"
//	}
//
// Durations accept Go duration strings or a number of seconds. Fields absent
// from the file keep their defaults.
//
// Usage:
//
//	cfg, err := config.Load("stop.json")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	wsURL := cfg.WebSocketURL("7Q2K", clientID)
package config
