package db

import _ "embed"

// Schema creates slap_documents and its NOTIFY trigger. It is safe to apply repeatedly.
//
//go:embed schema.sql
var Schema string

// NotifyChannel is the channel the trigger notifies with the document id
const NotifyChannel = "slap_counts"
