// Package threads tracks which users are active in a conversation thread.
//
// The relay records the sender of every threaded reply it posts. When a
// later message arrives in that thread without mentioning the bot, the
// classifier only answers users that are already members, so people talking
// among themselves in a bot thread are left alone.
//
// The registry is an LRU bounded by cache.max_threads; evicting a thread
// simply means the bot needs to be mentioned again to rejoin it.
package threads
