package models

import "strings"

// Contact is the campaign recipient as seen by the engine.
// Contact records themselves live in the external CRM.
type Contact struct {
	ID         string `json:"contact_id"`
	CompanyID  string `json:"company_id"`
	Phone      string `json:"phone"`
	FirstName  string `json:"first_name"`
	PhoneIndex int    `json:"phone_index"`
}

// NewContact derives the contact identity from company and phone
func NewContact(companyID, phone, firstName string, phoneIndex int) Contact {
	return Contact{
		ID:         ContactID(companyID, phone),
		CompanyID:  companyID,
		Phone:      NormalizePhone(phone),
		FirstName:  firstName,
		PhoneIndex: phoneIndex,
	}
}

// ChatID returns the WhatsApp chat id of the contact
func (c Contact) ChatID() string {
	return ChatID(c.Phone)
}

// NormalizePhone strips everything but digits
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ContactID is "{companyID}-{digits}"
func ContactID(companyID, phone string) string {
	return companyID + "-" + NormalizePhone(phone)
}

// ChatID is "{digits}@c.us"
func ChatID(phone string) string {
	return NormalizePhone(phone) + "@c.us"
}

// ChatIDForContact reverses ContactID. ok is false when contactID does not
// belong to companyID.
func ChatIDForContact(companyID, contactID string) (string, bool) {
	prefix := companyID + "-"
	if !strings.HasPrefix(contactID, prefix) || len(contactID) == len(prefix) {
		return "", false
	}
	return ChatID(contactID[len(prefix):]), true
}
