package providers

// Request and response bodies of the four verification services.

type documentRequest struct {
	CustomerID       string `json:"customerId"`
	DocumentType     string `json:"documentType,omitempty"`
	DocumentNumber   string `json:"documentNumber,omitempty"`
	ExpiryDate       string `json:"expiryDate,omitempty"`
	DocumentImageURL string `json:"documentImageUrl,omitempty"`
}

type documentResponse struct {
	Status     string   `json:"status"`
	Confidence *int     `json:"confidence"`
	Reasons    []string `json:"reasons"`
}

type biometricRequest struct {
	CustomerID string `json:"customerId"`
	SelfieURL  string `json:"selfieUrl,omitempty"`
	IDPhotoURL string `json:"idPhotoUrl,omitempty"`
}

type biometricResponse struct {
	Status          string   `json:"status"`
	Confidence      *int     `json:"confidence"`
	SimilarityScore *float64 `json:"similarityScore"`
}

type addressRequest struct {
	CustomerID string `json:"customerId"`
	Address    string `json:"address,omitempty"`
	ProofType  string `json:"proofType,omitempty"`
	ProofDate  string `json:"proofDate,omitempty"`
	ProofURL   string `json:"proofUrl,omitempty"`
}

type addressResponse struct {
	Status     string   `json:"status"`
	Confidence *int     `json:"confidence"`
	Reasons    []string `json:"reasons"`
}

type sanctionsRequest struct {
	CustomerID  string `json:"customerId"`
	FullName    string `json:"fullName"`
	DateOfBirth string `json:"dateOfBirth"`
	Nationality string `json:"nationality,omitempty"`
}

type sanctionsResponse struct {
	Status     string   `json:"status"`
	MatchCount int      `json:"matchCount"`
	Matches    []string `json:"matches"`
}
