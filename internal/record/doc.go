// Package record implements the simulation log: a single JSON document that
// maps initial-condition keys to condition records, each owning run records,
// each owning output records.
//
// All mutation goes through *Store. Condition and Run are lightweight handles
// holding the store and their keys; they never persist on their own.
//
// Document layout:
//
//	{
//	  "<ic>": {
//	    "information": "...", "meta": {...}, "core": {...}, "action_log": {...},
//	    "simulations": {
//	      "<run>": {
//	        "information": "...", "meta": {...}, "core": {...}, "components": {...},
//	        "action_log": {...},
//	        "outputs": {"<dir>": {"information": "...", "meta": {...}, "action_log": {...}}}
//	      }
//	    }
//	  }
//	}
//
// A Store is not safe for concurrent use. Saves across processes are guarded
// by an advisory lock file and a digest check that refuses to overwrite a
// document changed on disk since it was loaded.
package record
