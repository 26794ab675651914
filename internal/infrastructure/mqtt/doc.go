// Package mqtt wraps paho.mqtt.golang for nestunify's broker session.
//
// MQTT is the service's message bus. The upstream adapters (the Matter
// bridge and the Nest cloud bridge) publish entity state and accept
// commands over the broker; the core publishes retained composite
// climate state and source labels for downstream consumers:
//
//	upstream adapters <-> broker <-> nestunify core <-> dashboards
//
// The client adds what the raw library leaves to callers: subscription
// restore on reconnect, panic recovery around handlers, payload and QoS
// validation, and the retained online/offline announcement on
// nestunify/system/status (with an LWT for crashes).
//
//	client, err := mqtt.Connect(cfg.MQTT)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
//
//	err = client.Subscribe(mqtt.Topics{}.AllClimateStates(), 1,
//	    func(topic string, payload []byte) error {
//	        // runs on a paho goroutine; hand off, don't block
//	        return nil
//	    })
package mqtt
