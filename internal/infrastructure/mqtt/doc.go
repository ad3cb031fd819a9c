// Package mqtt connects the catalogue service to an MQTT broker.
//
// The broker is optional. When enabled, other services can trigger a
// catalogue reload by publishing to <prefix>/command/reload, and every load
// outcome is announced on <prefix>/event/loaded. The service keeps a
// retained status on <prefix>/system/status, with a Last Will so that a
// crash is visible as "offline" with reason unexpected_disconnect.
//
// # Usage
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(client.Topics().CommandReload(), 1,
//	    mqtt.ReloadHandler(func(req mqtt.ReloadRequest) error {
//	        _, err := catalog.Load(ctx, req.Source, nil)
//	        return err
//	    }))
//
// Subscriptions are restored automatically after a reconnect. Payloads are
// JSON and limited to 1MB.
package mqtt
