package main

// Certificate assets are stored under a fresh random namespace so retried
// generations never overwrite each other.
const (
	certificateKeyPattern = "certificates/%s/bank_certificate.pdf"
	certificateMetadata   = "process_after_idp_done"
)
