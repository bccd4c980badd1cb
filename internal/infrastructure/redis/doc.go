// Package redis connects lightbridge to Redis when the store backend is
// "redis". The device status hash lives under redis.key.
//
//	client, err := redis.Connect(ctx, cfg.Redis)
//	if err != nil {
//	    return err
//	}
//	defer client.Close()
package redis
