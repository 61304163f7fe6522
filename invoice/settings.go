package invoice

// Setting keys read by the rendering model.
const (
	SettingCompanyName       = "companyName"
	SettingCompanyEmail      = "companyEmail"
	SettingCompanyPhone      = "companyPhone"
	SettingCompanyWhatsapp   = "companyWhatsapp"
	SettingCompanyAddress    = "companyAddress"
	SettingBankName          = "bankName"
	SettingAccountNumber     = "accountNumber"
	SettingIFSCCode          = "ifscCode"
	SettingAccountHolderName = "accountHolderName"
	SettingUPIID             = "upiId"
	SettingDefaultDueDays    = "defaultDueDays"
	SettingDefaultCurrency   = "defaultCurrency"
)

// DefaultSettings holds the deployment fallbacks used when a key is absent.
var DefaultSettings = map[string]string{
	SettingCompanyName:       "MOLLA ENTERPRISES",
	SettingCompanyEmail:      "abedinmolla1@gmail.com",
	SettingCompanyPhone:      "9681766016",
	SettingCompanyWhatsapp:   "9681766016",
	SettingCompanyAddress:    "BAGNAN, HOWRAH, WEST BENGAL 711303",
	SettingBankName:          "State Bank of India",
	SettingAccountNumber:     "1234567890",
	SettingIFSCCode:          "SBIN0001234",
	SettingAccountHolderName: "MOLLA ENTERPRISES",
	SettingUPIID:             "abedinmolla1@paytm",
	SettingDefaultDueDays:    "30",
	SettingDefaultCurrency:   "INR",
}

// Settings is an ordered key/value collection. Lookups use the first match.
type Settings []Setting

// Resolve returns the value of the first setting named key, or fallback when
// the key is absent or its first occurrence is empty.
func Resolve(settings Settings, key, fallback string) string {
	for _, setting := range settings {
		if setting.Key != key {
			continue
		}
		if setting.Value == "" {
			return fallback
		}
		return setting.Value
	}
	return fallback
}

// Value resolves key against the collection.
func (s Settings) Value(key, fallback string) string {
	return Resolve(s, key, fallback)
}

// ValueOrDefault resolves key with the deployment default from DefaultSettings.
func (s Settings) ValueOrDefault(key string) string {
	return Resolve(s, key, DefaultSettings[key])
}
