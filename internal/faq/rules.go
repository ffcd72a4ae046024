package faq

import "strings"

// Rule answers a question containing any of its keywords.
type Rule struct {
	Name     string
	Keywords []string
	Answer   string
}

func (r Rule) matches(normalized string) bool {
	for _, k := range r.Keywords {
		if k != "" && strings.Contains(normalized, k) {
			return true
		}
	}
	return false
}

// normalizeRules folds the keywords the same way questions are folded.
func normalizeRules(rules []Rule) []Rule {
	out := make([]Rule, 0, len(rules))
	for _, r := range rules {
		keywords := make([]string, 0, len(r.Keywords))
		for _, k := range r.Keywords {
			if k = Normalize(k); k != "" {
				keywords = append(keywords, k)
			}
		}
		out = append(out, Rule{Name: r.Name, Keywords: keywords, Answer: r.Answer})
	}
	return out
}

// DefaultRules are the shop's canned answers, checked in order.
func DefaultRules() []Rule {
	return []Rule{
		{
			Name:     "fabric_selection",
			Keywords: []string{"نوع قماش", "مناسب", "كيف اختار", "انواع القماش"},
			Answer: "لدينا تشكيلة متكاملة تلبي جميع احتياجاتك على مدار العام:\n\n" +
				"· لفصل الصيف: السيلكا القطن الصيفي - خفيف الوزن وبارد على البشرة.\n" +
				"· لفصل الخريف: السيلكا القطن الخريفي - متين يناسب تقلبات الطقس.\n" +
				"· لفصل الشتاء: السيلكا القطن الشتوي - أكثر كثافة يوفر الدفء.\n" +
				"· للدفء والرفاهية: أصوافنا المتميزة (كشمير هندي - إيطالي - جولدن تكس مصري).",
		},
		{
			Name:     "wool_types",
			Keywords: []string{"انواع الصوف", "الفرق بين انواع الصوف"},
			Answer: "كل نوع من أصوافنا عالم من الرفاهية:\n\n" +
				"· صوف كشمير هندي: نعومة استثنائية ودفء لا يضاهى، الاختيار الأمثل للشتاء والمناسبات الخاصة.\n" +
				"· صوف إيطالي: أناقة أوروبية وألوان عصرية، مثالي للخريف وبدايات الشتاء.\n" +
				"· صوف جولدن تكس مصري: يجمع بين المتانة واللمعان الطبيعي، يناسب جميع الفصول الباردة.",
		},
		{
			Name:     "cotton_silica",
			Keywords: []string{"السيلكا القطن", "للطقس البارد جدا"},
			Answer:   "بالتأكيد! السيلكا القطن الشتوي مصمم خصيصاً ليقدم دفئاً مريحاً مع الحفاظ على مظهر السيلكا الأنيق، مما يجعله اختياراً مثالياً للشتاء.",
		},
		{
			Name:     "warmth_balance",
			Keywords: []string{"توازن", "دافي"},
			Answer: "إذا كنت تبحث عن التوازن بين الدفء وخفة الوزن، نوصي بـ:\n\n" +
				"· صوف الكشمير الهندي للدفء الفائق مع وزن خفيف جداً.\n" +
				"· الصوف الإيطالي للخريف وبدايات الشتاء.",
		},
		{
			Name:     "autumn",
			Keywords: []string{"خريف"},
			Answer:   "لمناسبة خريفية، ننصحك باختيار السيلكا القطن الخريفي لمظهر أنيق، أو الصوف الإيطالي إذا أردت مظهراً كلاسيكياً فاخراً.",
		},
		{
			Name:     "winter",
			Keywords: []string{"شتاء"},
			Answer:   "الاختيار يعتمد على أولوياتك: للأناقة والمظهر البراق السيلكا القطن الشتوي، وللدفء والرفاهية المطلقة صوف الكشمير الهندي.",
		},
		{
			Name:     "assistance",
			Keywords: []string{"مساعده", "اختيار القماش المناسب"},
			Answer:   "بكل تأكيد! فريقنا متخصص في استشارات الأقمشة. اتصل بنا أو راسلنا على الواتساب 01148820088 وسنختار لك معاً القماش المثالي.",
		},
		{
			Name:     "shipping",
			Keywords: []string{"شحن", "المحافظات", "محافظه"},
			Answer:   "نعم، نوفر الشحن إلى جميع محافظات مصر حتى باب البيت. متوسط وقت التوصيل يومان لمعظم المحافظات.",
		},
		{
			Name:     "inspection",
			Keywords: []string{"قبل الاستلام", "معاينه"},
			Answer:   "للأسف لا يمكن المعاينة قبل الاستلام لحماية المنتج، لكن نوفر ضمان الاستبدال أو الاسترجاع بعد الاستلام إذا لم يكن المنتج مطابقاً للتوقعات.",
		},
		{
			Name:     "payment_methods",
			Keywords: []string{"طرق الدفع", "ادفع"},
			Answer:   "نوفر عدة خيارات للدفع:\n\n· 💳 الدفع عند الاستلام (مع عربون ١٠٪)\n· 📱 فودافون كاش\n· 📲 انستا باي",
		},
		{
			Name:     "cash_on_delivery",
			Keywords: []string{"عند الاستلام"},
			Answer:   "عند اختيار الدفع عند الاستلام نحجز عربون ١٠٪ من قيمة الطلبية قبل الشحن، ثم تدفع المبلغ المتبقي عند الاستلام.",
		},
		{
			Name:     "returns",
			Keywords: []string{"استبدال", "استرجاع"},
			Answer:   "نعم، نوفر خدمة الاستبدال والاسترجاع مع ضمان جودة المنتج لضمان رضاك التام.",
		},
		{
			Name:     "contact",
			Keywords: []string{"واتساب", "التواصل", "واتس اب"},
			Answer:   "يمكنك التواصل معنا مباشرة على 01148820088، فريق خدمة العملاء متاح لمساعدتك.",
		},
		{
			Name:     "greeting",
			Keywords: []string{"السلام", "مرحبا", "هاي", "hello"},
			Answer:   "👋 أهلاً وسهلاً! أنا بوت خدمة العملاء، اختر من التصنيفات لتصفح الأقمشة المتاحة.",
		},
	}
}
