package conversation

// Messages holds the customer-facing wording.
type Messages struct {
	ChooseMainCategory string
	ChooseSubCategory  string // formatted with the main category name
	ProductsOf         string // formatted with the category name
	NoCategories       string
	NoProducts         string
	NoItems            string
	Unavailable        string
	BackTitle          string
	OrderTitle         string
	Currency           string
	Unnamed            string
	DetailFooter       string
}

// DefaultMessages returns the shop's Arabic wording.
func DefaultMessages() Messages {
	return Messages{
		ChooseMainCategory: "📂 اختر التصنيف",
		ChooseSubCategory:  "📂 %s: اختر التصنيف الفرعي",
		ProductsOf:         "🛍️ منتجات %s",
		NoCategories:       "❌ لا توجد تصنيفات متاحة حالياً.",
		NoProducts:         "❌ لا توجد منتجات في هذا التصنيف.",
		NoItems:            "❌ لا توجد عناصر متاحة.",
		Unavailable:        "❌ حدث خطأ في جلب التصنيفات. حاول مرة أخرى.",
		BackTitle:          "🔙 العودة",
		OrderTitle:         "🛒 طلب المنتج",
		Currency:           "جنيه",
		Unnamed:            "بدون اسم",
		DetailFooter:       "للحجز أرسل الكمية بالمتر مع الاسم ورقم الموبايل والعنوان.",
	}
}
