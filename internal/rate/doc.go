// Package rate holds the Redis-backed fixed-window counters that throttle login and refresh.
//
// A window starts with INCR and an EXPIRE on the first hit. Keys:
//   - <prefix>:rl:login:<email>
//   - <prefix>:rl:login-ip:<ip>
//   - <prefix>:rl:refresh:<uid>
package rate
